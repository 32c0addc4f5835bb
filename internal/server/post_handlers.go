package server

import (
	"truuo/internal/models"
	"truuo/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Caption      string `json:"caption"`
	PreviewImage string `json:"preview_image"`
}

type voteRequest struct {
	Direction string `json:"direction"`
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	posts := s.feed.List(c.UserContext(), s.optionalUserID(c), page.Limit, page.Offset)
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.feed.Get(c.UserContext(), s.optionalUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.feed.SubmitPost(c.UserContext(), user, service.SubmitPostInput{
		Title:        req.Title,
		URL:          req.URL,
		Caption:      req.Caption,
		PreviewImage: req.PreviewImage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// VotePost handles POST /api/posts/:id/vote. Voting on a post that does
// not exist is not an error; the response reports applied=false.
func (s *Server) VotePost(c *fiber.Ctx) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	dir, ok := models.ParseVoteDirection(req.Direction)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("direction must be \"up\" or \"down\""))
	}

	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	post, applied, err := s.feed.Vote(c.UserContext(), user, c.Params("id"), dir)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"applied": applied,
		"post":    post,
	})
}

// GetStats handles GET /api/stats
func (s *Server) GetStats(c *fiber.Ctx) error {
	stats, err := s.feed.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetPreview handles GET /api/preview?url=&title=
func (s *Server) GetPreview(c *fiber.Ctx) error {
	preview, err := s.feed.Preview(c.Query("url"), c.Query("title"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}
