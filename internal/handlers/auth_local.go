package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
	"assistantmemory/internal/storage"
)

// AuthHandler handles registration, login and profile requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates an account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		if storage.KindOf(err) == storage.KindConflict {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Username or email already exists",
			})
		}
		return storageError(c, err, "User", "register user")
	}

	log.Printf("✅ [AUTH] User registered: %s", result.User.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "User registered successfully",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

// Login exchanges a username and password for a token
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	result, err := h.authService.Login(c.UserContext(), &req)
	if errors.Is(err, services.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}
	if err != nil {
		return storageError(c, err, "User", "log in")
	}

	return c.JSON(fiber.Map{
		"message":   "Login successful",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

// Me returns the authenticated user's profile
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	user, err := h.authService.Profile(c.UserContext(), userID)
	if err != nil {
		return storageError(c, err, "User", "retrieve user")
	}
	return c.JSON(fiber.Map{"user": user})
}
