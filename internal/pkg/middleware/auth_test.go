package middleware

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiworld/backoffice/internal/pkg/session"
	"github.com/digiworld/backoffice/internal/pkg/usercontext"
)

func setupAuthApp(t *testing.T) (*fiber.App, *session.Store, *session.Tokens) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	storage := redis.New(redis.Config{Host: mr.Host(), Port: port})
	t.Cleanup(func() { _ = storage.Close() })

	store := session.NewStore(storage, 10*time.Minute)
	tokens := session.NewTokens("test-secret", time.Hour)

	app := fiber.New()
	app.Get("/private", RequireAdmin(store, tokens), func(c *fiber.Ctx) error {
		ac, _ := usercontext.Get(c)
		return c.JSON(fiber.Map{"email": ac.Email})
	})
	return app, store, tokens
}

func TestRequireAdminMissingToken(t *testing.T) {
	app, _, _ := setupAuthApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/private", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdminGarbageToken(t *testing.T) {
	app, _, _ := setupAuthApp(t)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdminValidSession(t *testing.T) {
	app, store, tokens := setupAuthApp(t)

	sess, err := store.Create(3, "owner@digiworld.test")
	require.NoError(t, err)
	token, err := tokens.Sign(sess)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(HeaderSessionExpires))
}

func TestRequireAdminDestroyedSession(t *testing.T) {
	app, store, tokens := setupAuthApp(t)

	sess, err := store.Create(3, "owner@digiworld.test")
	require.NoError(t, err)
	token, err := tokens.Sign(sess)
	require.NoError(t, err)
	require.NoError(t, store.Destroy(sess.ID))

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
