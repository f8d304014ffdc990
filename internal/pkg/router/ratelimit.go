package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/digiup/backend/internal/pkg/cache"
	"github.com/digiup/backend/internal/pkg/env"
)

// newRateLimiter builds the API rate limiter backed by Redis so limits hold
// across instances. Uses database 1; the cache and job store use DB 0.
func newRateLimiter(max int, window time.Duration) fiber.Handler {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
	})
}
