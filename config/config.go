package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the process configuration. Values come from the environment
// with sensible local development defaults, call godotenv before New to
// source a .env file.
type AppConfig struct {
	Debug       bool
	Server      Server
	Auth        Auth
	Persistence Persistence
}

type Server struct {
	Addr     string
	ViewsDir string
	ViewsExt string
	AppName  string
}

type Auth struct {
	SigningKey           string `json:"-"`
	SigningMethod        string
	ContextKey           string
	CookieName           string
	TokenExpiration      int
	TokenLookup          string
	AuthScheme           string
	Issuer               string
	Audience             []string
	RejectedRouteKey     string
	RejectedRouteDefault string
}

type Persistence struct {
	Driver                string
	DSN                   string
	Debug                 bool
	PingTimeoutExpression string
}

func New() *AppConfig {
	return &AppConfig{
		Debug: envBool("APP_DEBUG", false),
		Server: Server{
			Addr:     envStr("SERVER_ADDR", ":3000"),
			ViewsDir: envStr("SERVER_VIEWS_DIR", "./views"),
			ViewsExt: envStr("SERVER_VIEWS_EXT", ".html"),
			AppName:  envStr("SERVER_APP_NAME", "go-expenses"),
		},
		Auth: Auth{
			SigningKey:           envStr("AUTH_SIGNING_KEY", ""),
			SigningMethod:        envStr("AUTH_SIGNING_METHOD", "HS256"),
			ContextKey:           envStr("AUTH_CONTEXT_KEY", "user"),
			CookieName:           envStr("AUTH_COOKIE_NAME", "token"),
			TokenExpiration:      envInt("AUTH_TOKEN_EXPIRATION", 1),
			TokenLookup:          envStr("AUTH_TOKEN_LOOKUP", "header:Authorization,query:token,cookie:token"),
			AuthScheme:           envStr("AUTH_SCHEME", "Bearer"),
			Issuer:               envStr("AUTH_ISSUER", "go-expenses"),
			Audience:             envList("AUTH_AUDIENCE"),
			RejectedRouteKey:     envStr("AUTH_REJECTED_ROUTE_KEY", "rejected_route"),
			RejectedRouteDefault: envStr("AUTH_REJECTED_ROUTE_DEFAULT", "/expense"),
		},
		Persistence: Persistence{
			Driver:                envStr("PERSISTENCE_DRIVER", "sqlite"),
			DSN:                   envStr("PERSISTENCE_DSN", "file:app.db?cache=shared&mode=rwc"),
			Debug:                 envBool("PERSISTENCE_DEBUG", false),
			PingTimeoutExpression: envStr("PERSISTENCE_PING_TIMEOUT", "5s"),
		},
	}
}

func (c *AppConfig) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("config: AUTH_SIGNING_KEY is required")
	}

	if c.Auth.SigningMethod != "HS256" {
		return fmt.Errorf("config: unsupported signing method %q", c.Auth.SigningMethod)
	}

	if c.Auth.TokenExpiration <= 0 {
		return fmt.Errorf("config: AUTH_TOKEN_EXPIRATION must be a positive hour count")
	}

	return nil
}

func (c *AppConfig) GetDebug() bool             { return c.Debug }
func (c *AppConfig) GetServer() Server          { return c.Server }
func (c *AppConfig) GetAuth() Auth              { return c.Auth }
func (c *AppConfig) GetPersistence() Persistence { return c.Persistence }

func (s Server) GetAddr() string     { return s.Addr }
func (s Server) GetViewsDir() string { return s.ViewsDir }
func (s Server) GetViewsExt() string { return s.ViewsExt }
func (s Server) GetAppName() string  { return s.AppName }

func (a Auth) GetSigningKey() string           { return a.SigningKey }
func (a Auth) GetSigningMethod() string        { return a.SigningMethod }
func (a Auth) GetContextKey() string           { return a.ContextKey }
func (a Auth) GetCookieName() string           { return a.CookieName }
func (a Auth) GetTokenExpiration() int         { return a.TokenExpiration }
func (a Auth) GetTokenLookup() string          { return a.TokenLookup }
func (a Auth) GetAuthScheme() string           { return a.AuthScheme }
func (a Auth) GetIssuer() string               { return a.Issuer }
func (a Auth) GetAudience() []string           { return a.Audience }
func (a Auth) GetRejectedRouteKey() string     { return a.RejectedRouteKey }
func (a Auth) GetRejectedRouteDefault() string { return a.RejectedRouteDefault }

func (p Persistence) GetDriver() string { return p.Driver }
func (p Persistence) GetDSN() string    { return p.DSN }
func (p Persistence) GetDebug() bool    { return p.Debug }

func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
