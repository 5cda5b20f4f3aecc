package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"twitline/internal/config"
	"twitline/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	red *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// A pooled second connection would get its own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{JWTSecret: "test-secret-key", Port: "0"}
	srv := NewServerWithDeps(cfg, db, rc)
	return &testServer{app: srv.App(), db: db, red: mr}
}

func (ts *testServer) signup(t *testing.T, name, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"full_name": name,
		"email":     email,
		"password":  "password123",
	})
	req := httptest.NewRequest("POST", "/auth/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

// response is a decoded test response.
type response struct {
	Code int
	Body *bytes.Buffer
}

func (ts *testServer) jsonRequest(t *testing.T, method, path, token string, payload any) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)

	b, _ := io.ReadAll(resp.Body)
	return response{Code: resp.StatusCode, Body: bytes.NewBuffer(b)}
}

func TestSignupAndSignin(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "Ada Lovelace", "ada@example.com")

	rec := ts.jsonRequest(t, "POST", "/auth/signin", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, rec.Code)

	rec = ts.jsonRequest(t, "POST", "/auth/signin", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, rec.Code)

	// Duplicate signup conflicts.
	body, _ := json.Marshal(map[string]string{
		"full_name": "Ada Again", "email": "ada@example.com", "password": "x",
	})
	req := httptest.NewRequest("POST", "/auth/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestFeedRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.jsonRequest(t, "GET", "/api/twits/", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, rec.Code)
}

func TestCreateTwitJSON(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")

	rec := ts.jsonRequest(t, "POST", "/api/twits/create", token, map[string]string{
		"content": "my very first twit here",
	})
	require.Equal(t, fiber.StatusCreated, rec.Code)

	var post models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "my very first twit here", post.Content)
	assert.Equal(t, "Ada", post.User.FullName)

	rec = ts.jsonRequest(t, "GET", "/api/twits/", token, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
}

func TestCreateTwitValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")

	tests := []struct {
		name    string
		content string
	}{
		{"too short", "short"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.jsonRequest(t, "POST", "/api/twits/create", token, map[string]string{"content": tt.content})
			assert.Equal(t, fiber.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateTwitUnsupportedContentType(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")

	req := httptest.NewRequest("POST", "/api/twits/create", bytes.NewReader([]byte("content=hello")))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func multipartBody(t *testing.T, fields map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreateTwitMultipart(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")

	body, contentType := multipartBody(t, map[string][]string{
		"content": {"a twit with two images attached"},
		"images":  {"https://cdn.example.com/a.webp", "https://cdn.example.com/b.webp"},
	})
	req := httptest.NewRequest("POST", "/api/twits/create", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	assert.Len(t, post.ImageURLs, 2)
}

func TestCreateTwitRejectsImagesPlusVideo(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")

	body, contentType := multipartBody(t, map[string][]string{
		"content": {"a twit breaking the media invariant"},
		"images":  {"https://cdn.example.com/a.webp"},
		"video":   {"https://cdn.example.com/v.mp4"},
	})
	req := httptest.NewRequest("POST", "/api/twits/create", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func createTwit(t *testing.T, ts *testServer, token, content string) models.Post {
	t.Helper()
	rec := ts.jsonRequest(t, "POST", "/api/twits/create", token, map[string]string{"content": content})
	require.Equal(t, fiber.StatusCreated, rec.Code)
	var post models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

func TestLikeUnlikeFlow(t *testing.T) {
	ts := newTestServer(t)
	author := ts.signup(t, "Ada", "ada@example.com")
	liker := ts.signup(t, "Grace", "grace@example.com")
	post := createTwit(t, ts, author, "a twit to be liked by grace")

	likePath := fmt.Sprintf("/api/twits/%d/like", post.ID)
	rec := ts.jsonRequest(t, "PUT", likePath, liker, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	var updated models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Len(t, updated.Likes, 1)

	// Repeated like is idempotent.
	rec = ts.jsonRequest(t, "PUT", likePath, liker, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Len(t, updated.Likes, 1)

	rec = ts.jsonRequest(t, "PUT", fmt.Sprintf("/api/twits/%d/unlike", post.ID), liker, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Empty(t, updated.Likes)

	rec = ts.jsonRequest(t, "GET", fmt.Sprintf("/api/twits/liked/%d", 2), liker, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	var liked []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &liked))
	assert.Empty(t, liked)
}

func TestDeleteTwitIdempotence(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")
	post := createTwit(t, ts, token, "a twit that gets deleted twice")

	path := fmt.Sprintf("/api/twits/%d", post.ID)
	rec := ts.jsonRequest(t, "DELETE", path, token, nil)
	assert.Equal(t, fiber.StatusOK, rec.Code)

	rec = ts.jsonRequest(t, "DELETE", path, token, nil)
	assert.Equal(t, fiber.StatusNotFound, rec.Code)
}

func TestOnlyOwnerMayModify(t *testing.T) {
	ts := newTestServer(t)
	author := ts.signup(t, "Ada", "ada@example.com")
	other := ts.signup(t, "Grace", "grace@example.com")
	post := createTwit(t, ts, author, "a twit belonging to ada only")

	rec := ts.jsonRequest(t, "DELETE", fmt.Sprintf("/api/twits/%d", post.ID), other, nil)
	assert.Equal(t, fiber.StatusForbidden, rec.Code)

	rec = ts.jsonRequest(t, "PUT", fmt.Sprintf("/api/twits/%d", post.ID), other, map[string]string{
		"content": "grace tries to rewrite history",
	})
	assert.Equal(t, fiber.StatusForbidden, rec.Code)
}

func TestUpdateTwit(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")
	post := createTwit(t, ts, token, "the original twit content here")

	rec := ts.jsonRequest(t, "PUT", fmt.Sprintf("/api/twits/%d", post.ID), token, map[string]string{
		"content": "the freshly edited twit content",
	})
	require.Equal(t, fiber.StatusOK, rec.Code)
	var updated models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "the freshly edited twit content", updated.Content)
}

func TestCommentFlow(t *testing.T) {
	ts := newTestServer(t)
	author := ts.signup(t, "Ada", "ada@example.com")
	commenter := ts.signup(t, "Grace", "grace@example.com")
	post := createTwit(t, ts, author, "a twit awaiting some comments")

	rec := ts.jsonRequest(t, "POST", fmt.Sprintf("/api/twits/%d/comment", post.ID), commenter, map[string]string{
		"content": "great twit",
	})
	require.Equal(t, fiber.StatusCreated, rec.Code)
	var comment models.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comment))
	assert.Equal(t, "great twit", comment.Content)
	assert.Equal(t, "Grace", comment.User.FullName)

	rec = ts.jsonRequest(t, "GET", "/api/twits/", author, nil)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Comments, 1)
}

func TestUserTwitsScoped(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.signup(t, "Ada", "ada@example.com")
	grace := ts.signup(t, "Grace", "grace@example.com")
	createTwit(t, ts, ada, "a twit authored by ada here")
	createTwit(t, ts, grace, "a twit authored by grace here")

	rec := ts.jsonRequest(t, "GET", "/api/twits/user/1", ada, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, uint(1), posts[0].UserID)
}

func TestFeedCacheAside(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "Ada", "ada@example.com")
	createTwit(t, ts, token, "a twit that lands in the cache")

	rec := ts.jsonRequest(t, "GET", "/api/twits/", token, nil)
	require.Equal(t, fiber.StatusOK, rec.Code)
	assert.True(t, ts.red.Exists(feedCacheKey))

	// A write invalidates the cached feed.
	createTwit(t, ts, token, "a second twit that busts cache")
	assert.False(t, ts.red.Exists(feedCacheKey))

	rec = ts.jsonRequest(t, "GET", "/api/twits/", token, nil)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	assert.Len(t, posts, 2)
}

func TestPlaceholderImage(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/media/placeholder/ada", nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Greater(t, len(body), 12)
	assert.Equal(t, "RIFF", string(body[0:4]))
	assert.Equal(t, "WEBP", string(body[8:12]))

	// Deterministic for a given seed.
	resp2, err := ts.app.Test(httptest.NewRequest("GET", "/media/placeholder/ada", nil), -1)
	require.NoError(t, err)
	body2, _ := io.ReadAll(resp2.Body)
	assert.Equal(t, body, body2)
}

func TestSeedFixtures(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, Seed(ts.db, SeedOptions{Users: 3, PostsPerUser: 2, Password: "pw"}))

	var users, posts int64
	require.NoError(t, ts.db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, ts.db.Model(&models.Post{}).Count(&posts).Error)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 6, posts)
}
