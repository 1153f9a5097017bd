package ratelimit

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

func TestNew_LimitsPerCaller(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			usercontext.Set(c, usercontext.UserContext{UserID: uid, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Use(New(2, time.Minute, nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	do := func(user string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Test-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("u1"))
	assert.Equal(t, fiber.StatusOK, do("u1"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("u1"))
	assert.Equal(t, fiber.StatusOK, do("u2"))
}

func clientIPOf(t *testing.T, cfg fiber.Config, headers map[string]string) string {
	t.Helper()
	app := fiber.New(cfg)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestClientIP_IgnoresForwardingHeadersByDefault(t *testing.T) {
	spoofed := map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.2"}
	assert.Equal(t, "0.0.0.0", clientIPOf(t, fiber.Config{}, spoofed))
}

func TestClientIP_ProxyHeader(t *testing.T) {
	headers := map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"}

	trusted := fiber.Config{
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0"},
		EnableIPValidation:      true,
	}
	assert.Equal(t, "198.51.100.2", clientIPOf(t, trusted, headers))

	untrusted := trusted
	untrusted.TrustedProxies = []string{"10.0.0.0/8"}
	assert.Equal(t, "0.0.0.0", clientIPOf(t, untrusted, headers))
}

func TestNew_SpoofedHeadersShareTheAddressBucket(t *testing.T) {
	app := fiber.New()
	app.Use(New(1, time.Minute, nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	do := func(ip string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("198.51.100.1"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("198.51.100.2"))
}
