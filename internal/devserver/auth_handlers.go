package devserver

import (
	"errors"
	"fmt"

	"twitline/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Signup handles POST /auth/signup.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Full name, email, and password are required"))
	}

	var existing models.User
	err := s.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("User already exists"))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to create user", err))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to create user", err))
	}

	user := models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashedPassword),
		Avatar:   fmt.Sprintf("/media/placeholder/%s", req.Email),
	}
	if err := s.db.Create(&user).Error; err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to create user", err))
	}

	token, err := s.generateToken(&user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to issue token", err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Signin handles POST /auth/signin.
func (s *Server) Signin(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	var user models.User
	err := s.db.Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewAuthError("Invalid credentials"))
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to sign in", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewAuthError("Invalid credentials"))
	}

	token, err := s.generateToken(&user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to issue token", err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}
