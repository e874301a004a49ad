package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

const what = "user"

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func byCondition(cond domain.Condition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cond.Username != "" {
			db = db.Where("username = ?", cond.Username)
		}
		if cond.FirstName != "" {
			db = db.Where("first_name = ?", cond.FirstName)
		}
		if cond.LastName != "" {
			db = db.Where("last_name = ?", cond.LastName)
		}
		if cond.Role != "" {
			db = db.Where("role = ?", cond.Role)
		}
		if cond.Status != "" {
			db = db.Where("status = ?", cond.Status)
		}
		return db
	}
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return repository.FindByID[domain.User](ctx, r.db, id, what)
}

func (r *GormRepository) FindByCond(ctx context.Context, cond domain.Condition) (*domain.User, error) {
	if cond.Empty() {
		return nil, errors.NotFound("user not found")
	}
	return repository.FindOne[domain.User](ctx, r.db.Scopes(byCondition(cond)).Order("created_at desc"), what)
}

func (r *GormRepository) List(ctx context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.User], error) {
	paging = paging.Normalize(domain.SortColumns...)
	query := r.db.Model(&domain.User{}).Scopes(byCondition(cond))

	users, total, err := repository.Paginate[domain.User](ctx, query, paging)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[domain.User]{Data: users, Paging: paging, Total: total}, nil
}

func (r *GormRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return repository.FindByIDs[domain.User](ctx, r.db, ids)
}

func (r *GormRepository) Insert(ctx context.Context, user *domain.User) error {
	return repository.Create(ctx, r.db, user, what)
}

func (r *GormRepository) Update(ctx context.Context, id string, patch domain.Update) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := r.FindByID(ctx, id)
		return err
	}
	return repository.Updates[domain.User](ctx, r.db, id, cols, what)
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	return repository.Delete[domain.User](ctx, r.db, id, what)
}

func (r *GormRepository) IncreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown user counter")
	}
	return repository.Increment[domain.User](ctx, r.db, id, field.Column(), step, what)
}

func (r *GormRepository) DecreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown user counter")
	}
	return repository.DecrementClamped[domain.User](ctx, r.db, id, field.Column(), step, what)
}
