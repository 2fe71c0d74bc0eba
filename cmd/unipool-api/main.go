// README: Entry point; loads config, wires services, starts HTTP server and background sweeps.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"unipool/internal/clients"
	"unipool/internal/config"
	httptransport "unipool/internal/http"
	"unipool/internal/infra"
	"unipool/internal/logger"
	"unipool/internal/modules/admin"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
	"unipool/internal/notify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.L.Fatal(err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.L.WithError(err).Fatal("postgres init")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var sink notify.Sink = notify.LogSink{}
	if cfg.Mail.Host != "" && cfg.Mail.OpsAddr != "" {
		sink = notify.MultiSink{
			notify.LogSink{},
			notify.NewMailSink(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Pass, cfg.Mail.From, cfg.Mail.OpsAddr),
		}
	}

	flagStore := admin.NewFlagStore(redisClient)
	auditStore := admin.NewStore(dbPool)

	tripStore := trip.NewStore(dbPool)
	ledger := trip.NewLedger(dbPool)
	tripSvc := trip.NewService(tripStore, flagStore, sink)

	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, tripStore, ledger, flagStore, sink)

	processor := clients.NewStripeProcessor(cfg.Stripe.SecretKey)
	paymentStore := payment.NewStore(dbPool)
	paymentSvc := payment.NewService(paymentStore, bookingStore, tripStore, processor, sink)

	adminSvc := admin.NewService(auditStore, flagStore, tripSvc, bookingSvc, paymentSvc)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Trips:    tripSvc,
		Bookings: bookingSvc,
		Payments: paymentSvc,
		Admin:    adminSvc,
		Redis:    redisClient,
		Config:   cfg,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go bookingSvc.RunExpirySweep(ctx, cfg.Booking.ExpireTick, cfg.Booking.ExpireGrace)

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.L.WithField("addr", cfg.HTTP.Addr).Info("unipool api listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Fatal(err)
	}
}
