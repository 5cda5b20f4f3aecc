// Package session manages the process-wide auth session: the bearer token
// and the signed-in user's profile. The token is persisted under a fixed key
// in a local sqlite keyring so it survives restarts, mirroring the web
// client's localStorage behavior. Nothing here is ambient: callers receive a
// *Store and inject it where it is needed.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TokenKey is the fixed keyring key the bearer token is persisted under.
// It matches the web client's localStorage key.
const TokenKey = "jwt"

// Profile is the signed-in user's identity as carried in the token claims.
type Profile struct {
	UserID   uint
	FullName string
	Avatar   string
}

type keyringEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (keyringEntry) TableName() string { return "keyring" }

// Store holds the current session and persists the token across restarts.
// All methods are safe for concurrent use.
type Store struct {
	db *gorm.DB

	mu      sync.RWMutex
	token   string
	profile Profile
}

// Open opens (or creates) the keyring database at path. Use ":memory:" for
// an ephemeral session in tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session keyring: %w", err)
	}
	if path == ":memory:" {
		// A pooled second connection would get its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&keyringEntry{}); err != nil {
		return nil, fmt.Errorf("migrate session keyring: %w", err)
	}
	return &Store{db: db}, nil
}

// Init loads the persisted token, if any, and decodes the profile from it.
// A keyring with no token is not an error.
func (s *Store) Init() error {
	var entry keyringEntry
	err := s.db.First(&entry, "key = ?", TokenKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}
	return s.set(entry.Value, false)
}

// SignIn stores the token for the current process and persists it.
func (s *Store) SignIn(token string) error {
	return s.set(token, true)
}

func (s *Store) set(token string, persist bool) error {
	profile, err := decodeProfile(token)
	if err != nil {
		return err
	}
	if persist {
		entry := keyringEntry{Key: TokenKey, Value: token, UpdatedAt: time.Now()}
		if err := s.db.Save(&entry).Error; err != nil {
			return fmt.Errorf("persist session token: %w", err)
		}
	}
	s.mu.Lock()
	s.token = token
	s.profile = profile
	s.mu.Unlock()
	return nil
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Profile returns the signed-in user's profile and whether a session exists.
func (s *Store) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, s.token != ""
}

// Clear wipes the session, both in memory and in the keyring. Called on
// sign-out and on any unauthorized response.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.profile = Profile{}
	s.mu.Unlock()
	return s.db.Delete(&keyringEntry{}, "key = ?", TokenKey).Error
}

// decodeProfile extracts the profile from the token claims without verifying
// the signature; the client does not hold the server's signing secret, and
// the server re-validates every request anyway.
func decodeProfile(token string) (Profile, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Profile{}, fmt.Errorf("malformed session token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Profile{}, errors.New("malformed session token claims")
	}

	var p Profile
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		if id, err := strconv.ParseUint(sub, 10, 32); err == nil {
			p.UserID = uint(id)
		}
	}
	if name, ok := claims["name"].(string); ok {
		p.FullName = name
	}
	if avatar, ok := claims["avatar"].(string); ok {
		p.Avatar = avatar
	}
	return p, nil
}
