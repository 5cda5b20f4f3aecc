package devserver

import (
	"fmt"
	"time"

	"twitline/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedOptions controls how much fixture data Seed generates.
type SeedOptions struct {
	Users        int
	PostsPerUser int
	Password     string // plaintext password shared by all seeded users
}

// DefaultSeedOptions returns a small fixture set suitable for local work.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Users: 5, PostsPerUser: 4, Password: "password"}
}

// SeedFixtures populates the server's database with generated fixture data.
func (s *Server) SeedFixtures(opts SeedOptions) error {
	return Seed(s.db, opts)
}

// Seed populates the database with generated users, twits, likes and
// comments. Idempotence is the caller's concern; running it twice doubles
// the data.
func Seed(db *gorm.DB, opts SeedOptions) error {
	gofakeit.Seed(time.Now().UnixNano())

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	users := make([]models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user := models.User{
			FullName: gofakeit.Name(),
			Email:    gofakeit.Email(),
			Password: string(hashed),
		}
		user.Avatar = fmt.Sprintf("/media/placeholder/%s", user.Email)
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		users = append(users, user)
	}

	for _, user := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			post := models.Post{
				Content: gofakeit.Paragraph(1, 2, 8, " "),
				UserID:  user.ID,
			}
			if gofakeit.Bool() {
				n := gofakeit.Number(1, models.MaxImages)
				for j := 0; j < n; j++ {
					post.ImageURLs = append(post.ImageURLs,
						fmt.Sprintf("/media/placeholder/%s", gofakeit.UUID()))
				}
			}
			if err := db.Create(&post).Error; err != nil {
				return fmt.Errorf("seed twit: %w", err)
			}

			// A few likes and comments from other seeded users.
			for _, other := range users {
				if other.ID == user.ID {
					continue
				}
				if gofakeit.Bool() {
					liker := other
					if err := db.Model(&post).Association("Likes").Append(&liker); err != nil {
						return fmt.Errorf("seed like: %w", err)
					}
				}
				if gofakeit.Number(0, 3) == 0 {
					comment := models.Comment{
						Content: gofakeit.Sentence(8),
						UserID:  other.ID,
						PostID:  post.ID,
					}
					if err := db.Create(&comment).Error; err != nil {
						return fmt.Errorf("seed comment: %w", err)
					}
				}
			}
		}
	}

	return nil
}
