package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Category is the closed set of expense categories. Anything outside this
// list is rejected at validation time.
type Category = string

const (
	CategoryGroceries      Category = "Groceries"
	CategoryTransportation Category = "Transportation"
	CategoryUtilities      Category = "Utilities"
	CategoryEntertainment  Category = "Entertainment"
	CategoryHealthcare     Category = "Healthcare"
	CategoryOther          Category = "Other"
)

// Categories returns the valid category names in display order.
func Categories() []Category {
	return []Category{
		CategoryGroceries,
		CategoryTransportation,
		CategoryUtilities,
		CategoryEntertainment,
		CategoryHealthcare,
		CategoryOther,
	}
}

func categoryValues() []any {
	cats := Categories()
	out := make([]any, len(cats))
	for i, c := range cats {
		out[i] = c
	}
	return out
}

// Expense belongs to exactly one user. Every read and write path filters
// by the owner id, a user can never see or touch another user's records.
type Expense struct {
	bun.BaseModel `bun:"table:expenses,alias:exp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Category      Category   `bun:"category,notnull" json:"category,omitempty"`
	Amount        float64    `bun:"amount,notnull" json:"amount,omitempty"`
	Date          *time.Time `bun:"date,nullzero,default:current_timestamp" json:"date,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
