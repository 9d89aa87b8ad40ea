package csrf

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
)

func testConfig() Config {
	return configDefault(Config{
		SecureKey: []byte("0123456789abcdef0123456789abcdef"),
	})
}

func TestIssueAndVerifyToken(t *testing.T) {
	cfg := testConfig()

	token, err := issueToken(cfg)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	if err := verifyToken(cfg, token); err != nil {
		t.Fatalf("expected token to verify, got: %v", err)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	cfg := testConfig()

	valid, err := issueToken(cfg)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	otherKey := testConfig()
	otherKey.SecureKey = []byte("ffffffffffffffffffffffffffffffff")

	tests := []struct {
		name  string
		cfg   Config
		token string
		want  error
	}{
		{name: "garbage", cfg: cfg, token: "%%%not-base64%%%", want: ErrTokenMismatch},
		{name: "tampered", cfg: cfg, token: valid + "x", want: ErrTokenMismatch},
		{name: "wrong key", cfg: otherKey, token: valid, want: ErrTokenMismatch},
		{name: "empty", cfg: cfg, token: "", want: ErrTokenMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.cfg, tt.token); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Expiration = -time.Minute

	token, err := issueToken(cfg)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	if err := verifyToken(cfg, token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got: %v", err)
	}
}

func TestIssueTokenRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.SecureKey = nil

	if _, err := issueToken(cfg); err != ErrSecureKeyMissing {
		t.Errorf("expected ErrSecureKeyMissing, got: %v", err)
	}
}

func TestInitializeSecureKeyPanicsOnShortKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for short key")
		}
	}()
	initializeSecureKey([]byte("too-short"))
}

// csrfTestContext implements the slice of router.Context the middleware
// touches, anything else panics through the embedded nil interface.
type csrfTestContext struct {
	router.Context

	method     string
	body       string
	headers    map[string]string
	locals     map[any]any
	nextCalled bool
	statusCode int
	sentString string
}

func newCSRFTestContext(method string) *csrfTestContext {
	return &csrfTestContext{
		method:  method,
		headers: map[string]string{},
		locals:  map[any]any{},
	}
}

func (c *csrfTestContext) Method() string { return c.method }
func (c *csrfTestContext) Body() []byte   { return []byte(c.body) }

func (c *csrfTestContext) GetString(key string, def string) string {
	if v, ok := c.headers[key]; ok {
		return v
	}
	return def
}

func (c *csrfTestContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return nil
	}
	return c.locals[key]
}

func (c *csrfTestContext) Next() error {
	c.nextCalled = true
	return nil
}

func (c *csrfTestContext) Status(code int) router.Context {
	c.statusCode = code
	return c
}

func (c *csrfTestContext) SendString(s string) error {
	c.sentString = s
	return nil
}

func next(ctx router.Context) error {
	return ctx.Next()
}

func TestMiddlewareSafeMethodPassesAndSeedsToken(t *testing.T) {
	middleware := New(Config{SecureKey: []byte("0123456789abcdef0123456789abcdef")})

	ctx := newCSRFTestContext("GET")
	if err := middleware(next)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ctx.nextCalled {
		t.Error("safe method should reach the handler")
	}

	token, ok := ctx.locals[DefaultContextKey].(string)
	if !ok || token == "" {
		t.Fatal("expected a token in locals for the views")
	}
}

func TestMiddlewarePostRequiresToken(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	middleware := New(Config{SecureKey: key})

	t.Run("missing token is rejected", func(t *testing.T) {
		ctx := newCSRFTestContext("POST")
		ctx.body = "name=Coffee"

		if err := middleware(next)(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.nextCalled {
			t.Error("handler should not run without a token")
		}
		if ctx.statusCode != router.StatusBadRequest {
			t.Errorf("expected %d, got %d", router.StatusBadRequest, ctx.statusCode)
		}
	})

	t.Run("form token is accepted", func(t *testing.T) {
		// fetch a token the way a rendered form would
		seed := newCSRFTestContext("GET")
		if err := middleware(next)(seed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		token := seed.locals[DefaultContextKey].(string)

		ctx := newCSRFTestContext("POST")
		ctx.body = "name=Coffee&" + DefaultFormFieldName + "=" + url.QueryEscape(token)

		if err := middleware(next)(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ctx.nextCalled {
			t.Error("handler should run with a valid form token")
		}
	})

	t.Run("header token is accepted", func(t *testing.T) {
		seed := newCSRFTestContext("GET")
		if err := middleware(next)(seed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		token := seed.locals[DefaultContextKey].(string)

		ctx := newCSRFTestContext("POST")
		ctx.headers[DefaultHeaderName] = token

		if err := middleware(next)(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ctx.nextCalled {
			t.Error("handler should run with a valid header token")
		}
	})

	t.Run("forged token is rejected", func(t *testing.T) {
		ctx := newCSRFTestContext("POST")
		ctx.headers[DefaultHeaderName] = strings.Repeat("A", 64)

		if err := middleware(next)(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.nextCalled {
			t.Error("handler should not run with a forged token")
		}
		if ctx.statusCode != router.StatusForbidden {
			t.Errorf("expected %d, got %d", router.StatusForbidden, ctx.statusCode)
		}
	})
}

func TestMiddlewareSkip(t *testing.T) {
	middleware := New(Config{
		SecureKey: []byte("0123456789abcdef0123456789abcdef"),
		Skip: func(ctx router.Context) bool {
			return true
		},
	})

	ctx := newCSRFTestContext("POST")
	if err := middleware(next)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.nextCalled {
		t.Error("skipped request should reach the handler")
	}
	if _, ok := ctx.locals[DefaultContextKey]; ok {
		t.Error("skipped request should not get a token")
	}
}
