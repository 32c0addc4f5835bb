package server

import (
	"strings"

	"truuo/internal/cache"
	"truuo/internal/middleware"
	"truuo/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	user, err := s.auth.Register(c.UserContext(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		return respondError(c, err)
	}

	cache.InvalidateStats(c.UserContext())

	token, _, err := s.auth.IssueToken(user)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.auth.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, _, err := s.auth.IssueToken(user)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.auth.Revoke(c.UserContext(), claimsFrom(c)); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "token revocation failed",
			"error", err.Error())
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers
// on WebSocket requests, so they trade their bearer token for a short-lived
// single-use ticket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errRedisUnavailable))
	}
	userID, _ := c.Locals("userID").(string)

	ticket := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), userID, cache.WSTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}
