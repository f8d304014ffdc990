package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/digiup/backend/internal/pkg/creatorupsync"
)

// HandleCreatorUpWebhook ingests a signed partner notification. Both webhook
// routes share this handler; the event_type in the body selects the effect.
func HandleCreatorUpWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Webhook-Signature")

	err := webhookIngestor.Process(body, signature)
	if err != nil {
		switch {
		case errors.Is(err, creatorupsync.ErrInvalidSignature):
			return respondError(c, fiber.StatusUnauthorized, "Invalid webhook signature")
		case errors.Is(err, creatorupsync.ErrUnknownUser):
			return respondError(c, fiber.StatusNotFound, "User not found")
		case errors.Is(err, creatorupsync.ErrMalformedPayload):
			return respondError(c, fiber.StatusBadRequest, "Malformed webhook payload")
		default:
			log.Errorf("[Webhook] Processing failed: %v", err)
			return respondError(c, fiber.StatusInternalServerError, "Webhook processing failed")
		}
	}

	return respondSuccess(c, fiber.StatusOK, "Webhook processed successfully", nil)
}
