package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/creatorup"
	"github.com/digiup/backend/internal/pkg/usercontext"
)

type saveCredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSaveCreatorUpCredentials stores the user's CreatorUp credentials in
// the metadata blob and marks the account as registered. The blob is
// overwritten wholesale; keys from earlier writes do not survive.
func HandleSaveCreatorUpCredentials(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req saveCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	blob, err := json.Marshal(map[string]interface{}{
		"email":         req.Email,
		"password":      req.Password,
		"registered_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to store credentials")
	}
	user.CreatorUpMetadata = string(blob)
	user.SyncStatus = models.SYNC_STATUS_REGISTERED
	if err := repo.Update(user); err != nil {
		log.Errorf("[CreatorUpAuth] Failed to save credentials for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusUnprocessableEntity, "Failed to save CreatorUp credentials")
	}

	log.Infof("[CreatorUpAuth] Credentials saved for user %d", user.ID)
	return respondSuccess(c, fiber.StatusOK, "CreatorUp credentials saved successfully", fiber.Map{
		"user": fiber.Map{
			"id":          user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"sync_status": user.SyncStatus,
		},
	})
}

// HandleGetCreatorUpCredentials returns the stored credential metadata. The
// password never leaves the server.
func HandleGetCreatorUpCredentials(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if user.CreatorUpMetadata == "" {
		return respondError(c, fiber.StatusNotFound, "CreatorUp credentials not found")
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(user.CreatorUpMetadata), &metadata); err != nil {
		return respondError(c, fiber.StatusNotFound, "CreatorUp credentials not found")
	}

	return respondSuccess(c, fiber.StatusOK, "CreatorUp credentials retrieved successfully", fiber.Map{
		"credentials": fiber.Map{
			"email":         metadata["email"],
			"registered_at": metadata["registered_at"],
		},
		"user": fiber.Map{
			"id":          user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"sync_status": user.SyncStatus,
		},
	})
}

// HandleCreatorUpStatus reports whether the user has registered credentials.
func HandleCreatorUpStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}

	registered := user.CreatorUpMetadata != "" &&
		(user.SyncStatus == models.SYNC_STATUS_REGISTERED || user.SyncStatus == models.SYNC_STATUS_SYNCED)

	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{
		"registered":  registered,
		"sync_status": user.SyncStatus,
	})
}

// HandleVerifyAccess is a delegated passthrough: the user's own token is
// forwarded to the partner verify endpoint.
func HandleVerifyAccess(c *fiber.Ctx) error {
	return delegatedCall(c, func(token string) (map[string]interface{}, error) {
		return partnerClient.VerifyAccess(c.UserContext(), token)
	})
}

// HandleGetProfile is a delegated passthrough to the partner profile endpoint.
func HandleGetProfile(c *fiber.Ctx) error {
	return delegatedCall(c, func(token string) (map[string]interface{}, error) {
		return partnerClient.FetchProfile(c.UserContext(), token)
	})
}

// HandleFeatureAccess is a delegated passthrough checking one feature gate.
// The feature comes from the route param or the feature query parameter.
func HandleFeatureAccess(c *fiber.Ctx) error {
	feature := c.Params("feature")
	if feature == "" {
		feature = c.Query("feature")
	}
	if feature == "" {
		return respondError(c, fiber.StatusBadRequest, "Feature name is required")
	}
	return delegatedCall(c, func(token string) (map[string]interface{}, error) {
		return partnerClient.CheckFeatureAccess(c.UserContext(), token, feature)
	})
}

func delegatedCall(c *fiber.Ctx, call func(token string) (map[string]interface{}, error)) error {
	userCtx := usercontext.GetUserContext(c)

	result, err := call(extractBearer(c))
	if err != nil {
		var apiErr *creatorup.APIError
		if errors.As(err, &apiErr) {
			c.Status(apiErr.Status)
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(apiErr.Body)
		}
		log.Errorf("[CreatorUpAuth] Delegated call failed for user %d: %v", userCtx.UserID, err)
		return respondError(c, fiber.StatusBadGateway, "CreatorUp API unreachable")
	}

	touchLastAccess(userCtx.UserID)
	return respondSuccess(c, fiber.StatusOK, "", result)
}

// touchLastAccess refreshes last_creatorup_access best-effort.
func touchLastAccess(userID uint) {
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userID)
	if err != nil {
		return
	}
	now := time.Now()
	user.LastCreatorUpAccess = &now
	if err := repo.Update(user); err != nil {
		log.Warnf("[CreatorUpAuth] Failed to update last access for user %d: %v", userID, err)
	}
}
