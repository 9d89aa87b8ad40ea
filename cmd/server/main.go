package main

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-expenses/auth"
	"github.com/goliatone/go-expenses/config"
	"github.com/goliatone/go-expenses/expense"
	"github.com/goliatone/go-expenses/middleware/csrf"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *config.AppConfig
	bunDB  *bun.DB
	auth   auth.Authenticator
	auther auth.HTTPAuthenticator
	repo   auth.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.AppConfig {
	return a.config
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	if err := godotenv.Load(); err != nil {
		lgr.GetLogger("config").Debug("no .env file loaded", "error", err)
	}

	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		lgr.GetLogger("config").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.GetLogger("boot").Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		lgr.GetLogger("boot").Error("http server setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithHTTPAuth(ctx, app); err != nil {
		lgr.GetLogger("boot").Error("auth setup failed", "error", err)
		os.Exit(1)
	}

	ExpenseRoutes(app)

	NotFoundFallback(app)

	app.srv.Serve(cfg.Server.GetAddr())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*expense.Expense)(nil))

	client, err := persistence.New(app.Config().GetPersistence(), db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	authMigrations, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		authMigrations,
		persistence.WithDialectSourceLabel("auth:data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	expenseMigrations, err := fs.Sub(expense.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		expenseMigrations,
		persistence.WithDialectSourceLabel("expense:data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	scfg := app.Config().GetServer()

	engine := django.New(scfg.GetViewsDir(), scfg.GetViewsExt())
	engine.Reload(app.Config().GetDebug())

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           scfg.GetAppName(),
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	srv.Router().Use(mflash.New(mflash.ConfigDefault))
	srv.Router().Use(csrf.New(csrf.Config{
		SecureKey: []byte(app.Config().GetAuth().GetSigningKey()),
	}))

	srv.Router().Get("/", func(ctx router.Context) error {
		return ctx.Redirect("/expense", router.StatusFound)
	})

	app.srv = srv

	return nil
}

// userStoreAdapter narrows the Users repository down to the lookup surface
// the identity provider needs.
type userStoreAdapter struct {
	users auth.Users
}

func (a userStoreAdapter) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return a.users.FindByEmail(ctx, email)
}

func (a userStoreAdapter) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return a.users.FindByID(ctx, id)
}

func WithHTTPAuth(ctx context.Context, app *App) error {
	cfg := app.Config().GetAuth()

	repo := auth.NewRepositoryManager(app.bunDB)

	if err := repo.Validate(); err != nil {
		return err
	}
	app.repo = repo

	userProvider := auth.NewUserProvider(userStoreAdapter{users: repo.Users()})
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	authenticator := auth.NewAuthenticator(userProvider, cfg)
	authenticator.WithLogger(app.GetLogger("auth:authn"))
	app.auth = authenticator

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		return err
	}

	httpAuth.WithLogger(app.GetLogger("auth:http"))
	app.auther = httpAuth

	auth.RegisterAuthRoutes(app.srv.Router().Group("/"),
		auth.WithControllerAuther(httpAuth),
		auth.WithControllerRepo(repo),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithControllerDebug(app.Config().GetDebug()),
	)

	return nil
}

func ExpenseRoutes(app *App) {
	cfg := app.Config().GetAuth()

	protected := app.auther.ProtectedRoute(cfg, app.auther.MakeClientRouteAuthErrorHandler(false))

	group := app.srv.Router().Group("/expense")

	expense.RegisterExpenseRoutes(group,
		[]router.MiddlewareFunc{protected},
		expense.WithControllerRepo(expense.NewExpensesRepository(app.bunDB)),
		expense.WithControllerLogger(app.GetLogger("expense:ctrl")),
	)
}

// NotFoundFallback renders the 404 page for anything no route claimed. It
// must be registered after every route.
func NotFoundFallback(app *App) {
	app.srv.Router().Use(func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			return ctx.Status(router.StatusNotFound).Render("404", router.ViewContext{
				"pageTitle": "Not Found",
			})
		}
	})
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
