package expense

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-expenses/auth"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// RegisterExpenseRoutes mounts the expense CRUD routes on the given router,
// usually a group already gated by the auth middleware.
func RegisterExpenseRoutes[T any](app router.Router[T], middlewares []router.MiddlewareFunc, opts ...ControllerOption) {

	controller := NewController(opts...)

	app.Get(controller.Routes.List, controller.ListShow, middlewares...).
		SetName("expense.list")

	app.Get(controller.Routes.Add, controller.AddShow, middlewares...).
		SetName("expense-add.get")
	app.Post(controller.Routes.Add, controller.AddPost, middlewares...).
		SetName("expense-add.post")

	app.Get(controller.Routes.Edit, controller.EditShow, middlewares...).
		SetName("expense-edit.get")
	app.Post(controller.Routes.Edit, controller.EditPost, middlewares...).
		SetName("expense-edit.post")

	app.Get(controller.Routes.Delete, controller.DeleteShow, middlewares...).
		SetName("expense-delete.get")
	app.Post(controller.Routes.Delete, controller.DeletePost, middlewares...).
		SetName("expense-delete.post")
}

type ControllerRoutes struct {
	List   string
	Add    string
	Edit   string
	Delete string
}

type ControllerViews struct {
	List   string
	Add    string
	Edit   string
	Delete string
}

type Controller struct {
	Logger       auth.Logger
	Repo         Expenses
	Routes       *ControllerRoutes
	Views        *ControllerViews
	ErrorHandler router.ErrorHandler
	// IdentityKey is the locals key the auth middleware stores the resolved
	// identity under
	IdentityKey string
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo Expenses) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerIdentityKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		c.IdentityKey = key
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		ErrorHandler: controllerErrHandler,
		IdentityKey:  "current_user",
		Routes: &ControllerRoutes{
			List:   "/",
			Add:    "/add",
			Edit:   "/edit/:id",
			Delete: "/delete/:id",
		},
		Views: &ControllerViews{
			List:   "expenses",
			Add:    "addExpense",
			Edit:   "editExpense",
			Delete: "deleteExpense",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing Expenses repository in expense controller...")
	}

	if c.Logger == nil {
		panic("Missing Logger in expense controller...")
	}

	return c
}

// ExpensePayload is the add and edit form payload
type ExpensePayload struct {
	Name     string  `form:"name" json:"name"`
	Category string  `form:"category" json:"category"`
	Amount   float64 `form:"amount" json:"amount"`
	Date     string  `form:"date" json:"date"`
}

// Validate will run validation rules
func (r ExpensePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(
			&r.Category,
			validation.Required,
			validation.In(categoryValues()...),
		),
		validation.Field(
			&r.Amount,
			validation.Required,
			validation.Min(0.0).Exclusive(),
		),
		validation.Field(
			&r.Date,
			validation.Required,
			validation.Date("2006-01-02"),
		),
	)
}

func (r ExpensePayload) parsedDate() *time.Time {
	d, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil
	}
	return &d
}

func (a *Controller) ListShow(ctx router.Context) error {
	userID, err := a.currentUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	records, err := a.Repo.ListByUser(ctx.Context(), userID)
	if err != nil {
		a.Logger.Error("expense list error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.List, router.ViewContext{
		"pageTitle": "Expenses",
		"expenses":  records,
	})
}

func (a *Controller) AddShow(ctx router.Context) error {
	return ctx.Render(a.Views.Add, router.ViewContext{
		"pageTitle":  "Add Expense",
		"categories": Categories(),
		"errors":     map[string]string{},
	})
}

func (a *Controller) AddPost(ctx router.Context) error {
	userID, err := a.currentUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ExpensePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("expense add parse payload", "error", err)
		return a.renderForm(ctx, a.Views.Add, payload, map[string]string{
			"form": "Failed to parse form",
		})
	}

	if err := payload.Validate(); err != nil {
		return a.renderForm(ctx, a.Views.Add, payload, auth.FormatValidationErrorToMap(err))
	}

	record := &Expense{
		UserID:   userID,
		Name:     payload.Name,
		Category: payload.Category,
		Amount:   payload.Amount,
		Date:     payload.parsedDate(),
	}

	if _, err := a.Repo.Save(ctx.Context(), record); err != nil {
		a.Logger.Error("expense add save", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Redirect("/expense", router.StatusSeeOther)
}

func (a *Controller) EditShow(ctx router.Context) error {
	userID, err := a.currentUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	id, err := a.recordID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	record, err := a.Repo.FindOwned(ctx.Context(), id, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return ctx.Status(router.StatusNotFound).Render("404", router.ViewContext{
				"pageTitle": "Not Found",
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Edit, router.ViewContext{
		"pageTitle":  "Edit Expense",
		"categories": Categories(),
		"expense":    record,
		"errors":     map[string]string{},
	})
}

func (a *Controller) EditPost(ctx router.Context) error {
	userID, err := a.currentUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	id, err := a.recordID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ExpensePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("expense edit parse payload", "error", err)
		return a.renderForm(ctx, a.Views.Edit, payload, map[string]string{
			"form": "Failed to parse form",
		})
	}

	if err := payload.Validate(); err != nil {
		return a.renderForm(ctx, a.Views.Edit, payload, auth.FormatValidationErrorToMap(err))
	}

	record := &Expense{
		ID:       id,
		Name:     payload.Name,
		Category: payload.Category,
		Amount:   payload.Amount,
		Date:     payload.parsedDate(),
	}

	if _, err := a.Repo.UpdateOwned(ctx.Context(), record, userID); err != nil {
		if errors.IsNotFound(err) {
			return ctx.Status(router.StatusNotFound).Render("404", router.ViewContext{
				"pageTitle": "Not Found",
			})
		}
		a.Logger.Error("expense edit save", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Redirect("/expense", router.StatusSeeOther)
}

func (a *Controller) DeleteShow(ctx router.Context) error {
	id, err := a.recordID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Delete, router.ViewContext{
		"pageTitle": "Delete Expense",
		"expenseId": id.String(),
	})
}

func (a *Controller) DeletePost(ctx router.Context) error {
	userID, err := a.currentUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	id, err := a.recordID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Repo.DeleteOwned(ctx.Context(), id, userID); err != nil {
		if errors.IsNotFound(err) {
			return ctx.Status(router.StatusNotFound).
				SendString("Expense not found or not owned by the user.")
		}
		a.Logger.Error("expense delete", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Expense deleted",
	}).Redirect("/expense", fiber.StatusSeeOther)
}

func (a *Controller) renderForm(ctx router.Context, view string, payload *ExpensePayload, errs map[string]string) error {
	return ctx.Render(view, router.ViewContext{
		"pageTitle":  "Expenses",
		"categories": Categories(),
		"expense":    payload,
		"errors":     errs,
	})
}

func (a *Controller) currentUserID(ctx router.Context) (uuid.UUID, error) {
	identity, ok := auth.GetRouterIdentity(ctx, a.IdentityKey)
	if !ok {
		return uuid.Nil, errors.New("no authenticated identity in request", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryAuth, "malformed identity id").
			WithCode(errors.CodeUnauthorized)
	}

	return userID, nil
}

func (a *Controller) recordID(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id", "")

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryBadInput, "malformed expense id").
			WithCode(errors.CodeBadRequest)
	}

	return id, nil
}

func controllerErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
		"error": richErr,
	})
}
