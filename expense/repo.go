package expense

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Expenses is the store for expense records. Every owner scoped method
// filters by user id so handlers never have to remember to.
type Expenses interface {
	repository.Repository[*Expense]

	ListByUser(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) ([]*Expense, error)
	FindOwned(ctx context.Context, id, userID uuid.UUID) (*Expense, error)
	Save(ctx context.Context, record *Expense) (*Expense, error)
	UpdateOwned(ctx context.Context, record *Expense, userID uuid.UUID) (*Expense, error)
	DeleteOwned(ctx context.Context, id, userID uuid.UUID) error
}

type expenses struct {
	repository.Repository[*Expense]
	db *bun.DB
}

var (
	_ Expenses                        = (*expenses)(nil)
	_ repository.Repository[*Expense] = (*expenses)(nil)
)

func NewExpensesRepository(db *bun.DB) Expenses {
	repo := repository.NewRepository[*Expense](db, repository.ModelHandlers[*Expense]{
		NewRecord: func() *Expense { return &Expense{} },
		GetID: func(e *Expense) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Expense, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &expenses{
		Repository: repo,
		db:         db,
	}
}

func (r *expenses) ListByUser(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) ([]*Expense, error) {
	records := []*Expense{}

	q := r.db.NewSelect().Model(&records)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.user_id = ?", userID).
		Order("date DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *expenses) FindOwned(ctx context.Context, id, userID uuid.UUID) (*Expense, error) {
	record := &Expense{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id":      id.String(),
					"user_id": userID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *expenses) Save(ctx context.Context, record *Expense) (*Expense, error) {
	prepareExpenseDefaults(record)
	return r.Repository.CreateTx(ctx, r.db, record)
}

// UpdateOwned refuses to touch a record that belongs to someone else. The
// ownership check and the write run against the same keys, a mismatched
// owner simply finds no row.
func (r *expenses) UpdateOwned(ctx context.Context, record *Expense, userID uuid.UUID) (*Expense, error) {
	if _, err := r.FindOwned(ctx, record.ID, userID); err != nil {
		return nil, err
	}

	record.UserID = userID
	now := time.Now()
	record.UpdatedAt = &now

	res, err := r.db.NewUpdate().
		Model(record).
		Column("name", "category", "amount", "date", "updated_at").
		Where("?TableAlias.id = ?", record.ID).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id":      record.ID.String(),
				"user_id": userID.String(),
			})
	}

	return record, nil
}

func (r *expenses) DeleteOwned(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := r.FindOwned(ctx, id, userID); err != nil {
		return err
	}

	_, err := r.db.NewDelete().
		Model((*Expense)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)

	return err
}

func prepareExpenseDefaults(record *Expense) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Date == nil {
		now := time.Now()
		record.Date = &now
	}
}
