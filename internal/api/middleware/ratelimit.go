package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/apperrors"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
)

// RateLimit limits requests per client IP using an in-memory store.
// rateFormatted: "100-M", "1000-H", "50-S". Empty disables.
func RateLimit(rateFormatted string) (gin.HandlerFunc, error) {
	if rateFormatted == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			apperrors.TooManyRequests(c)
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// a broken limiter store must not take the API down
			log := logger.Component("http")
			log.Error().Err(err).Msg("Rate limiter failed")
			c.Next()
		}),
	), nil
}
