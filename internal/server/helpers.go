package server

import (
	"context"
	"errors"
	"strings"

	"truuo/internal/auth"
	"truuo/internal/cache"
	"truuo/internal/middleware"
	"truuo/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var errRedisUnavailable = errors.New("redis is not configured")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 30
	maxPaginationLimit     = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// setUser stores the authenticated user ID in locals and in the user
// context so logs and downstream calls see it.
func setUser(c *fiber.Ctx, userID string) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

// AuthRequired returns the authentication middleware. WebSocket paths take
// a single-use ticket; everything else takes a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			userID, ok := s.consumeWSTicket(c.UserContext(), ticket)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			setUser(c, userID)
			return c.Next()
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.auth.ParseToken(c.UserContext(), tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals("claims", claims)
		setUser(c, claims.Subject)
		return c.Next()
	}
}

// consumeWSTicket redeems a ticket exactly once.
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (string, bool) {
	if s.redis == nil {
		return "", false
	}
	userID, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil || userID == "" {
		return "", false
	}
	return userID, true
}

// optionalUserID returns the caller's user ID when a valid bearer token is
// present. Anonymous or invalid callers browse as guests.
func (s *Server) optionalUserID(c *fiber.Ctx) string {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return ""
	}
	claims, err := s.auth.ParseToken(c.UserContext(), tokenString)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// currentUser loads the account behind an authenticated request.
func (s *Server) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	user, err := s.auth.UserByID(c.UserContext(), userID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}
