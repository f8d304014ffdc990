package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/digiup/backend/internal/pkg/creatorup"
	"github.com/digiup/backend/internal/pkg/creatorupsync"
)

// Package-level service handles, wired once at startup from main. Controllers
// stay plain fiber handlers the way the rest of the codebase expects.
var (
	syncService     *creatorupsync.Service
	webhookIngestor *creatorupsync.WebhookIngestor
	partnerClient   *creatorup.Client
)

// SetServices injects the service layer into the controller package.
func SetServices(svc *creatorupsync.Service, ingestor *creatorupsync.WebhookIngestor, client *creatorup.Client) {
	syncService = svc
	webhookIngestor = ingestor
	partnerClient = client
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

func respondSuccess(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{
		"status":  "success",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// extractBearer returns the raw bearer token of the request, or empty string.
func extractBearer(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// GetClientIP determines the actual client IP considering proxy headers.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return c.IP()
}
