package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/middleware"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new account and returns a signed token.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(req.Email); err == nil {
		return respondError(c, fiber.StatusConflict, "Email is already registered")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := repo.Create(user); err != nil {
		log.Errorf("[Auth] Failed to create user %s: %v", req.Email, err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to issue token")
	}

	log.Infof("[Auth] Registered user %d (%s)", user.ID, GetClientIP(c))
	return respondSuccess(c, fiber.StatusCreated, "User registered successfully", fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"sync_status": user.SyncStatus,
		},
	})
}

// HandleLogin verifies credentials and returns a signed token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		return respondError(c, fiber.StatusInternalServerError, "Login failed")
	}
	if !user.CheckPassword(req.Password) {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if !user.IsActive() {
		return respondError(c, fiber.StatusForbidden, "User account is disabled")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repo.Update(user); err != nil {
		log.Warnf("[Auth] Failed to update last login for user %d: %v", user.ID, err)
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to issue token")
	}

	return respondSuccess(c, fiber.StatusOK, "Login successful", fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"sync_status": user.SyncStatus,
		},
	})
}
