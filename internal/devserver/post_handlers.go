package devserver

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"twitline/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// twitPayload is the decoded create/update body, accepted either as JSON or
// as a multipart form with media URL fields.
type twitPayload struct {
	Content       string
	ImageURLs     []string
	VideoURL      string
	VideoDuration float64
}

// parseTwitPayload negotiates the request content type. Anything other than
// JSON or multipart is rejected with 415, which the client maps to its
// unsupported-media error.
func parseTwitPayload(c *fiber.Ctx) (*twitPayload, error) {
	contentType := c.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return nil, models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		return &twitPayload{Content: req.Content}, nil

	case strings.HasPrefix(contentType, "multipart/form-data"):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		p := &twitPayload{}
		if v := form.Value["content"]; len(v) > 0 {
			p.Content = v[0]
		}
		p.ImageURLs = form.Value["images"]
		if v := form.Value["video"]; len(v) > 0 {
			p.VideoURL = v[0]
		}
		if v := form.Value["videoDuration"]; len(v) > 0 {
			if d, err := strconv.ParseFloat(v[0], 64); err == nil {
				p.VideoDuration = d
			}
		}
		return p, nil

	default:
		return nil, models.RespondWithError(c, fiber.StatusUnsupportedMediaType,
			models.NewValidationError("Content-Type must be application/json or multipart/form-data"))
	}
}

func validateTwitPayload(p *twitPayload) error {
	content := strings.TrimSpace(p.Content)
	length := utf8.RuneCountInString(content)
	if length < models.MinContentLength {
		return models.NewValidationError("Content must be at least 10 characters")
	}
	if length > models.MaxContentLength {
		return models.NewValidationError("Content cannot exceed 500 characters")
	}
	post := models.Post{ImageURLs: p.ImageURLs, VideoURL: p.VideoURL, VideoDuration: p.VideoDuration}
	return post.ValidateMedia()
}

// loadTwit fetches a post with its associations.
func (s *Server) loadTwit(id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.
		Preload("User").
		Preload("Likes").
		Preload("Comments").
		Preload("Comments.User").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetAllTwits handles GET /api/twits/. The feed is served cache-aside with a
// short TTL; every write path invalidates it.
func (s *Server) GetAllTwits(c *fiber.Ctx) error {
	var posts []models.Post
	err := s.cache.CacheAside(c.Context(), feedCacheKey, &posts, feedCacheTTL, func() error {
		return s.db.
			Preload("User").
			Preload("Likes").
			Preload("Comments").
			Preload("Comments.User").
			Order("created_at DESC").
			Find(&posts).Error
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twits", err))
	}
	return c.JSON(posts)
}

// CreateTwit handles POST /api/twits/create.
func (s *Server) CreateTwit(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	payload, err := parseTwitPayload(c)
	if payload == nil {
		return err
	}
	if err := validateTwitPayload(payload); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	post := models.Post{
		Content:       strings.TrimSpace(payload.Content),
		ImageURLs:     payload.ImageURLs,
		VideoURL:      payload.VideoURL,
		VideoDuration: payload.VideoDuration,
		UserID:        userID,
	}
	if err := s.db.Create(&post).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to create twit", err))
	}

	created, err := s.loadTwit(post.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}

	s.cache.Invalidate(c.Context(), feedCacheKey)
	twitsCreated.Inc()
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetUserTwits handles GET /api/twits/user/:id.
func (s *Server) GetUserTwits(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user id"))
	}

	var posts []models.Post
	if err := s.db.
		Preload("User").
		Preload("Likes").
		Preload("Comments").
		Preload("Comments.User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twits", err))
	}
	return c.JSON(posts)
}

// GetLikedTwits handles GET /api/twits/liked/:id.
func (s *Server) GetLikedTwits(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user id"))
	}

	var posts []models.Post
	if err := s.db.
		Preload("User").
		Preload("Likes").
		Preload("Comments").
		Preload("Comments.User").
		Joins("JOIN post_likes ON post_likes.post_id = posts.id").
		Where("post_likes.user_id = ?", userID).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load liked twits", err))
	}
	return c.JSON(posts)
}

// LikeTwit handles PUT /api/twits/:id/like.
func (s *Server) LikeTwit(c *fiber.Ctx) error {
	return s.toggleLike(c, true)
}

// UnlikeTwit handles PUT /api/twits/:id/unlike.
func (s *Server) UnlikeTwit(c *fiber.Ctx) error {
	return s.toggleLike(c, false)
}

func (s *Server) toggleLike(c *fiber.Ctx, like bool) error {
	userID := c.Locals("userID").(uint)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid twit id"))
	}

	post, err := s.loadTwit(uint(postID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Twit", postID))
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load user", err))
	}

	assoc := s.db.Model(post).Association("Likes")
	if like {
		// Appending an existing member is a no-op, so a repeated like stays
		// idempotent.
		if !post.LikedBy(userID) {
			err = assoc.Append(&user)
		}
	} else {
		err = assoc.Delete(&user)
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to update like", err))
	}

	updated, err := s.loadTwit(uint(postID))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}

	s.cache.Invalidate(c.Context(), feedCacheKey)
	verb := "unlike"
	if like {
		verb = "like"
	}
	likeToggles.WithLabelValues(verb).Inc()
	return c.JSON(updated)
}

// UpdateTwit handles PUT /api/twits/:id. Only the author may update; media
// replaces wholesale.
func (s *Server) UpdateTwit(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid twit id"))
	}

	var post models.Post
	if err := s.db.First(&post, postID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Twit", postID))
	} else if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}
	if post.UserID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewValidationError("You can only update your own twits"))
	}

	payload, err := parseTwitPayload(c)
	if payload == nil {
		return err
	}
	if err := validateTwitPayload(payload); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	post.Content = strings.TrimSpace(payload.Content)
	post.ImageURLs = payload.ImageURLs
	post.VideoURL = payload.VideoURL
	post.VideoDuration = payload.VideoDuration
	if err := s.db.Save(&post).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to update twit", err))
	}

	updated, err := s.loadTwit(post.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}

	s.cache.Invalidate(c.Context(), feedCacheKey)
	return c.JSON(updated)
}

// DeleteTwit handles DELETE /api/twits/:id. Repeating the delete returns 404.
func (s *Server) DeleteTwit(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid twit id"))
	}

	var post models.Post
	if err := s.db.First(&post, postID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Twit", postID))
	} else if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}
	if post.UserID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewValidationError("You can only delete your own twits"))
	}

	if err := s.db.Delete(&post).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to delete twit", err))
	}

	s.cache.Invalidate(c.Context(), feedCacheKey)
	return c.JSON(fiber.Map{"message": "Twit deleted successfully"})
}

// CreateComment handles POST /api/twits/:id/comment.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := c.ParamsInt("id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid twit id"))
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Comment content is required"))
	}

	var post models.Post
	if err := s.db.First(&post, postID).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Twit", postID))
	} else if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load twit", err))
	}

	comment := models.Comment{
		Content: strings.TrimSpace(req.Content),
		UserID:  userID,
		PostID:  post.ID,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to create comment", err))
	}
	if err := s.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to load comment", err))
	}

	s.cache.Invalidate(c.Context(), feedCacheKey)
	commentsCreated.Inc()
	return c.Status(fiber.StatusCreated).JSON(comment)
}
