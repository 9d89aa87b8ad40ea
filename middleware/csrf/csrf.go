package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultTokenLength is the nonce length in bytes
const DefaultTokenLength = 32

// DefaultContextKey is the locals key the issued token is stored under.
// With PassLocalsToViews enabled the templates read it back directly.
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the hidden input carrying the token
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the header alternative for non-form clients
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip the middleware
	Skip func(router.Context) bool

	// TokenLength is the random nonce length in bytes
	TokenLength int

	// ContextKey is the locals key for the issued token
	ContextKey string

	// FormFieldName is the form field checked on unsafe methods
	FormFieldName string

	// HeaderName is the header checked on unsafe methods
	HeaderName string

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SafeMethods are verbs that never require a token
	SafeMethods []string

	// Expiration bounds how long an issued token stays valid
	Expiration time.Duration

	// SecureKey signs issued tokens. Tokens are self contained, there is
	// no server side token store.
	SecureKey []byte
}

// New creates a CSRF middleware. Every request gets a fresh signed token in
// locals for the views to embed; unsafe methods must echo a valid token back
// through the form field or the header.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := issueToken(cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return hf(ctx)
			}

			received := extractToken(ctx, cfg)
			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if err := verifyToken(cfg, received); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return hf(ctx)
		}
	}
}

// issueToken mints a signed token: base64(timestamp:nonce:hmac)
func issueToken(cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s", time.Now().UTC().Unix(), hex.EncodeToString(nonce))

	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	signature := mac.Sum(nil)

	token := payload + ":" + hex.EncodeToString(signature)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func verifyToken(cfg Config, token string) error {
	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	timestampStr, nonceHex, signatureHex := parts[0], parts[1], parts[2]

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	if _, err := hex.DecodeString(nonceHex); err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrTokenMismatch
	}

	payload := timestampStr + ":" + nonceHex
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))

	if !hmac.Equal(signature, mac.Sum(nil)) {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		expiresAt := time.Unix(timestamp, 0).Add(cfg.Expiration)
		if time.Now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}

	return nil
}

// extractToken checks the form body first, then the header. The body is
// parsed from the raw submission so extraction never consumes the payload
// the handler binds later.
func extractToken(ctx router.Context, cfg Config) string {
	if form, err := url.ParseQuery(string(ctx.Body())); err == nil {
		if token := form.Get(cfg.FormFieldName); token != "" {
			return token
		}
	}

	return ctx.GetString(cfg.HeaderName, "")
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case ErrTokenExpired:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}

	// a random per process key still protects forms, tokens just don't
	// survive a restart
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
