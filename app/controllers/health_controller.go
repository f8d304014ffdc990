package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

var startedAt = time.Now()

// HandleHealth is the public liveness probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startedAt).Round(time.Second).String(),
	})
}
