package auth

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// passwordSymbols is the punctuation set the complexity rule accepts
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

type RegisterUserMessage struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

var _ command.Message = RegisterUserMessage{}

// RegisterUserHandler persists a validated registration
type RegisterUserHandler struct {
	Repo   RepositoryManager
	Logger Logger
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	logger := h.Logger
	if logger == nil {
		logger = defLogger{}
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// duplicate check before any hash work; the unique constraint
		// at the store remains the backstop
		if existing, err := h.Repo.Users().FindByEmailTx(ctx, tx, event.Email); err != nil {
			if !goerrors.IsNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
			}
		} else if existing != nil {
			return ErrDuplicatedEmail
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Name = event.Name
		user.Email = event.Email
		user.PasswordHash = hash
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.Repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			if richErr.Category != goerrors.CategoryConflict {
				logger.Error("user registration failed", "error", richErr)
			}
			return richErr
		}

		logger.Error("user registration transaction failed", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return nil
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confpassword" json:"confpassword"`
}

// registrationFields is the strict form schema, anything else is rejected
var registrationFields = map[string]bool{
	"name":         true,
	"email":        true,
	"password":     true,
	"confpassword": true,
	"_token":       true,
}

// Validate will validate the payload. Rules run per field and every failure
// is collected so the form can render all problems at once.
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(4, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(ValidatePasswordComplexity)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ValidatePasswordComplexity requires at least one uppercase letter, one
// lowercase letter, and one symbol from the accepted punctuation set.
// No length minimum beyond the pattern.
func ValidatePasswordComplexity(value any) error {
	s, _ := value.(string)

	var hasUpper, hasLower, hasSymbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasSymbol {
		return goerrors.New(
			"must contain an uppercase letter, a lowercase letter, and a symbol",
			goerrors.CategoryValidation,
		)
	}

	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New("values must match", goerrors.CategoryValidation)
		}
		return nil
	}
}

// CheckUnknownFormFields enforces the strict schema on the raw submission:
// any key outside the payload is a field error keyed by that field name.
func CheckUnknownFormFields(body []byte) map[string]string {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return map[string]string{"form": "Failed to parse form"}
	}

	unknown := map[string]string{}
	for key := range form {
		if !registrationFields[key] {
			unknown[key] = "unknown field"
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	return unknown
}

// FormatValidationErrorToMap flattens an ozzo validation error into a
// field -> message map the views can render directly.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrs validation.Errors
	if goerrors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
