// README: Structured logging setup (logrus with optional lumberjack rotation).
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// L is the process-wide logger. Init must be called once from main before use;
// the zero setup logs to stderr at info level, which is fine for tests.
var L = logrus.New()

// Init configures level and output. When file is non-empty, logs rotate via
// lumberjack and are mirrored to stderr.
func Init(level, file string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	L.SetLevel(lvl)
	L.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		L.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
}
