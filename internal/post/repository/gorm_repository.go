package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

const what = "post"

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// byCondition scopes a query to the set filters of cond.
func byCondition(cond domain.Condition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cond.Str != "" {
			db = db.Where("content LIKE ?", "%"+cond.Str+"%")
		}
		if cond.UserID != "" {
			db = db.Where("author_id = ?", cond.UserID)
		}
		if cond.TopicID != "" {
			db = db.Where("topic_id = ?", cond.TopicID)
		}
		if cond.IsFeatured != nil {
			db = db.Where("is_featured = ?", *cond.IsFeatured)
		}
		if cond.Type != "" {
			db = db.Where("type = ?", cond.Type)
		}
		return db
	}
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	return repository.FindByID[domain.Post](ctx, r.db, id, what)
}

// FindByCond returns the newest post matching cond. An empty condition matches nothing.
func (r *GormRepository) FindByCond(ctx context.Context, cond domain.Condition) (*domain.Post, error) {
	if cond.Empty() {
		return nil, errors.NotFound("post not found")
	}
	return repository.FindOne[domain.Post](ctx, r.db.Scopes(byCondition(cond)).Order("created_at desc"), what)
}

func (r *GormRepository) List(ctx context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Post], error) {
	paging = paging.Normalize(domain.SortColumns...)
	query := r.db.Model(&domain.Post{}).Scopes(byCondition(cond))

	posts, total, err := repository.Paginate[domain.Post](ctx, query, paging)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[domain.Post]{Data: posts, Paging: paging, Total: total}, nil
}

func (r *GormRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	return repository.FindByIDs[domain.Post](ctx, r.db, ids)
}

func (r *GormRepository) Insert(ctx context.Context, post *domain.Post) error {
	return repository.Create(ctx, r.db, post, what)
}

func (r *GormRepository) Update(ctx context.Context, id string, patch domain.Update) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := r.FindByID(ctx, id)
		return err
	}
	return repository.Updates[domain.Post](ctx, r.db, id, cols, what)
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	return repository.Delete[domain.Post](ctx, r.db, id, what)
}

func (r *GormRepository) IncreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown post counter")
	}
	return repository.Increment[domain.Post](ctx, r.db, id, field.Column(), step, what)
}

func (r *GormRepository) DecreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown post counter")
	}
	return repository.DecrementClamped[domain.Post](ctx, r.db, id, field.Column(), step, what)
}
