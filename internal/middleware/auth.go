package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/gofiber/fiber/v2"
)

// AuthConfig defines the config for the auth middleware
type AuthConfig struct {
	// Skip defines a function to skip middleware.
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Validator is a function to validate the API key.
	// Required.
	Validator func(key string) (bool, error)

	// ErrorHandler defines a function which is executed for an invalid API key.
	// Optional. Default: 401 Invalid or missing API Key
	ErrorHandler fiber.ErrorHandler

	// ContextKey is the key used to store the API key in the context.
	// Optional. Default: "apiKey"
	ContextKey string

	// Header is the header key where to get the API key from.
	// Optional. Default: "X-API-Key"
	Header string
}

// ConfigDefault is the default config
var ConfigDefault = AuthConfig{
	Next: nil,
	ErrorHandler: func(c *fiber.Ctx, err error) error {
		logger.Get().Warn().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Err(err).
			Msg("Authentication failed")

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or missing API Key",
		})
	},
	ContextKey: "apiKey",
	Header:     "X-API-Key",
}

// NewAuth creates a new API key middleware handler
func NewAuth(config ...AuthConfig) fiber.Handler {
	cfg := ConfigDefault

	if len(config) > 0 {
		cfg = config[0]

		if cfg.Next == nil {
			cfg.Next = ConfigDefault.Next
		}
		if cfg.ErrorHandler == nil {
			cfg.ErrorHandler = ConfigDefault.ErrorHandler
		}
		if cfg.ContextKey == "" {
			cfg.ContextKey = ConfigDefault.ContextKey
		}
		if cfg.Header == "" {
			cfg.Header = ConfigDefault.Header
		}
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		authHeader := c.Get(cfg.Header)
		if authHeader == "" {
			return cfg.ErrorHandler(c, errors.New("missing API key"))
		}

		// For "Bearer " prefixed tokens
		token := strings.TrimPrefix(authHeader, "Bearer ")

		valid, err := cfg.Validator(token)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		if !valid {
			return cfg.ErrorHandler(c, errors.New("invalid API key"))
		}

		c.Locals(cfg.ContextKey, token)
		return c.Next()
	}
}

// APIKey accepts requests carrying the configured key in X-API-Key or as a
// bearer token in Authorization.
func APIKey(key string) fiber.Handler {
	validator := func(token string) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1, nil
	}

	header := NewAuth(AuthConfig{Validator: validator})
	bearer := NewAuth(AuthConfig{Validator: validator, Header: fiber.HeaderAuthorization})

	return func(c *fiber.Ctx) error {
		if c.Get("X-API-Key") == "" && c.Get(fiber.HeaderAuthorization) != "" {
			return bearer(c)
		}
		return header(c)
	}
}

// AllowedEmails admits only callers whose identity proxy header names an
// address on the list. An empty list admits everyone.
func AllowedEmails(emails []string) fiber.Handler {
	allowed := make(map[string]bool, len(emails))
	for _, e := range emails {
		allowed[strings.ToLower(strings.TrimSpace(e))] = true
	}

	return func(c *fiber.Ctx) error {
		if len(allowed) == 0 {
			return c.Next()
		}

		email := strings.ToLower(strings.TrimSpace(c.Get("X-Forwarded-Email")))
		if email == "" || !allowed[email] {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Str("email", email).
				Msg("Unauthorized editor access attempt")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Editor access required",
			})
		}

		c.Locals("email", email)
		return c.Next()
	}
}
