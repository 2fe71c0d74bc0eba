// README: Per-route rate limiting backed by Redis.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"unipool/internal/logger"
)

// RateLimit builds a limiter middleware from a rate string like "10-1m".
// On any setup failure the route runs unlimited; throttling is protective,
// never load-bearing.
func RateLimit(rdb *redis.Client, rate, routeID string) gin.HandlerFunc {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		logger.L.WithError(err).WithField("route", routeID).Warn("ratelimit: bad rate string")
		return func(c *gin.Context) { c.Next() }
	}
	store, err := redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit:" + routeID,
	})
	if err != nil {
		logger.L.WithError(err).WithField("route", routeID).Warn("ratelimit: store init failed")
		return func(c *gin.Context) { c.Next() }
	}
	return ginlimiter.NewMiddleware(limiter.New(store, parsed))
}
