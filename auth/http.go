package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-expenses/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	// cookie lifetime always equals the token TTL, a replayed cookie should
	// never outlive the token it carries
	cookieDuration := time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute gates a route behind token verification. The token is
// looked up per cfg.GetTokenLookup, validated, and its identity claim is
// resolved against the user store before the handler runs.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:     errorHandler,
		TokenValidator:   validatorAdapter{auth: a.auth},
		IdentityResolver: a.resolveIdentity,
		ContextEnricher:  a.enrichContext,
		AuthScheme:       cfg.GetAuthScheme(),
		ContextKey:       cfg.GetContextKey(),
		TokenLookup:      cfg.GetTokenLookup(),
	})
}

// Login verifies the payload and, on success, attaches the issued token to
// the response as an HttpOnly cookie.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return nil
}

// Logout clears the transport credential. There is no server side
// revocation, a token replayed outside the cookie stays valid until expiry.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetCookieName())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// resolveIdentity maps validated claims to a stored user. An unknown user
// id is an auth failure like any other, the gate redirects.
func (a *RouteAuthenticator) resolveIdentity(ctx context.Context, claims jwtware.AuthClaims) (any, error) {
	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	session := &SessionObject{
		UserID:         claims.UserID(),
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}

	identity, err := a.auth.IdentityFromSession(ctx, session)
	if err != nil {
		return nil, err
	}

	return identity, nil
}

func (a *RouteAuthenticator) enrichContext(c context.Context, claims jwtware.AuthClaims) context.Context {
	if authClaims, ok := claims.(AuthClaims); ok {
		return WithClaimsContext(c, authClaims)
	}
	return c
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz, errors.CategoryNotFound:
		return a.AuthErrorHandler(c, richErr)
	default:
		a.Logger.Error(
			"Middleware error handler",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

// validatorAdapter bridges the Authenticator token validation to the
// middleware's import-cycle-free interface.
type validatorAdapter struct {
	auth Authenticator
}

func (v validatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if svc, ok := v.auth.(interface{ TokenService() TokenService }); ok {
		claims, err := svc.TokenService().Validate(tokenString)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}

	session, err := v.auth.SessionFromToken(tokenString)
	if err != nil {
		return nil, err
	}

	claims, ok := session.(jwtware.AuthClaims)
	if !ok {
		return sessionClaims{session: session}, nil
	}

	return claims, nil
}

// sessionClaims adapts a Session to the middleware claims surface
type sessionClaims struct {
	session Session
}

func (s sessionClaims) Subject() string { return s.session.GetUserID() }
func (s sessionClaims) UserID() string  { return s.session.GetUserID() }

func (s sessionClaims) IssuedAt() time.Time {
	if t := s.session.GetIssuedAt(); t != nil {
		return *t
	}
	return time.Time{}
}

func (s sessionClaims) Expires() time.Time {
	if t := s.session.GetExpiration(); t != nil {
		return *t
	}
	return time.Time{}
}
