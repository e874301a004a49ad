package repository

import (
	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// Repository is the post access contract shared by the base stores and
// the cached decorator.
type Repository interface {
	cacherepo.QueryStore[domain.Post, domain.Condition]
	cacherepo.CommandStore[domain.Post, domain.Update]
	cacherepo.CounterStore[domain.CounterField]
}
