package session

import (
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, sub, name, avatar string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    sub,
		"name":   name,
		"avatar": avatar,
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSignInDecodesProfile(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)

	require.NoError(t, store.SignIn(makeToken(t, "42", "Ada Lovelace", "/media/placeholder/ada")))

	assert.NotEmpty(t, store.Token())
	profile, ok := store.Profile()
	require.True(t, ok)
	assert.Equal(t, uint(42), profile.UserID)
	assert.Equal(t, "Ada Lovelace", profile.FullName)
	assert.Equal(t, "/media/placeholder/ada", profile.Avatar)
}

func TestSignInRejectsMalformedToken(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)

	require.Error(t, store.SignIn("not-a-jwt"))
	assert.Empty(t, store.Token())
}

func TestTokenSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.db")
	token := makeToken(t, "7", "Grace Hopper", "")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SignIn(token))

	// A fresh store over the same file sees the persisted token.
	reopened, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Init())

	assert.Equal(t, token, reopened.Token())
	profile, ok := reopened.Profile()
	require.True(t, ok)
	assert.Equal(t, uint(7), profile.UserID)
}

func TestClearWipesSessionAndKeyring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SignIn(makeToken(t, "7", "G", "")))
	require.NoError(t, store.Clear())

	assert.Empty(t, store.Token())
	_, ok := store.Profile()
	assert.False(t, ok)

	reopened, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Init())
	assert.Empty(t, reopened.Token())
}

func TestInitWithEmptyKeyring(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Init())
	assert.Empty(t, store.Token())
}
