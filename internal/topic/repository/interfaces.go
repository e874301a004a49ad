package repository

import (
	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// Repository is the topic access contract shared by the base stores and
// the cached decorator.
type Repository interface {
	cacherepo.QueryStore[domain.Topic, domain.Condition]
	cacherepo.CommandStore[domain.Topic, domain.Update]
	cacherepo.CounterStore[domain.CounterField]
}
