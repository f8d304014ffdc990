package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/jobqueue"
	"github.com/digiup/backend/internal/pkg/usercontext"
)

type subscribeRequest struct {
	PricingPlanID uint `json:"pricing_plan_id"`
}

// HandleListApps returns the active marketplace catalog with pricing plans.
func HandleListApps(c *fiber.Ctx) error {
	apps, err := repository.GetGlobalRepositories().App.ListActive()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load apps")
	}
	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{"apps": apps})
}

// HandleGetApp returns one app by ID.
func HandleGetApp(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid app ID")
	}

	app, err := repository.GetGlobalRepositories().App.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fiber.StatusNotFound, "App not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to load app")
	}
	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{"app": app})
}

// HandleSubscribeApp subscribes the user to a pricing plan of the app and
// queues a subscription sync toward CreatorUp.
func HandleSubscribeApp(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	appID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || appID == 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid app ID")
	}

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil || req.PricingPlanID == 0 {
		return respondError(c, fiber.StatusBadRequest, "Pricing plan ID is required")
	}

	repos := repository.GetGlobalRepositories()
	app, err := repos.App.GetByID(uint(appID))
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "App not found")
	}
	plan, err := repos.App.GetPricingPlan(req.PricingPlanID)
	if err != nil || plan.AppID != app.ID || !plan.IsActive {
		return respondError(c, fiber.StatusBadRequest, "Invalid pricing plan for this app")
	}

	sub := &models.AppSubscription{
		UserID:        userCtx.UserID,
		AppID:         app.ID,
		PricingPlanID: plan.ID,
		Status:        models.SUBSCRIPTION_STATUS_ACTIVE,
		StartedAt:     time.Now(),
	}
	if err := repos.App.CreateSubscription(sub); err != nil {
		log.Errorf("[Apps] Subscription create failed for user %d plan %d: %v", userCtx.UserID, plan.ID, err)
		return respondError(c, fiber.StatusConflict, "Subscription already exists")
	}

	err = syncService.EnqueueSubscriptionSync(jobqueue.SubscriptionSyncJobPayload{
		DigiUpUserID: userCtx.UserID,
		AppID:        app.Slug,
		PlanName:     plan.Name,
		Status:       sub.Status,
		Data: map[string]interface{}{
			"subscription_id": sub.ID,
			"price_cents":     plan.PriceCents,
			"interval":        plan.Interval,
		},
	})
	if err != nil {
		log.Warnf("[Apps] Subscription sync enqueue failed for user %d: %v", userCtx.UserID, err)
	}

	return respondSuccess(c, fiber.StatusCreated, "Subscription created", fiber.Map{
		"subscription": sub,
	})
}

// HandleMySubscriptions lists the user's app subscriptions.
func HandleMySubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	subs, err := repository.GetGlobalRepositories().App.GetSubscriptionsByUser(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load subscriptions")
	}
	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{"subscriptions": subs})
}
