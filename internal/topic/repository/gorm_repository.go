package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

const what = "topic"

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*domain.Topic, error) {
	return repository.FindByID[domain.Topic](ctx, r.db, id, what)
}

// FindByCond looks a topic up by exact name. An empty condition matches nothing.
func (r *GormRepository) FindByCond(ctx context.Context, cond domain.Condition) (*domain.Topic, error) {
	if cond.Name == "" {
		return nil, errors.NotFound("topic not found")
	}
	return repository.FindOne[domain.Topic](ctx, r.db.Where("name = ?", cond.Name), what)
}

func (r *GormRepository) List(ctx context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Topic], error) {
	paging = paging.Normalize(domain.SortColumns...)
	query := r.db.Model(&domain.Topic{})
	if cond.Name != "" {
		query = query.Where("name LIKE ?", "%"+cond.Name+"%")
	}

	topics, total, err := repository.Paginate[domain.Topic](ctx, query, paging)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[domain.Topic]{Data: topics, Paging: paging, Total: total}, nil
}

func (r *GormRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Topic, error) {
	return repository.FindByIDs[domain.Topic](ctx, r.db, ids)
}

func (r *GormRepository) Insert(ctx context.Context, topic *domain.Topic) error {
	return repository.Create(ctx, r.db, topic, what)
}

func (r *GormRepository) Update(ctx context.Context, id string, patch domain.Update) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := r.FindByID(ctx, id)
		return err
	}
	return repository.Updates[domain.Topic](ctx, r.db, id, cols, what)
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	return repository.Delete[domain.Topic](ctx, r.db, id, what)
}

func (r *GormRepository) IncreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown topic counter")
	}
	return repository.Increment[domain.Topic](ctx, r.db, id, field.Column(), step, what)
}

func (r *GormRepository) DecreaseCount(ctx context.Context, id string, field domain.CounterField, step int) error {
	if !field.Valid() {
		return errors.BadRequest("unknown topic counter")
	}
	return repository.DecrementClamped[domain.Topic](ctx, r.db, id, field.Column(), step, what)
}
