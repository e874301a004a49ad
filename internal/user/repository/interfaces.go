package repository

import (
	"github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// Repository is the user access contract shared by the base stores and
// the cached decorator.
type Repository interface {
	cacherepo.QueryStore[domain.User, domain.Condition]
	cacherepo.CommandStore[domain.User, domain.Update]
	cacherepo.CounterStore[domain.CounterField]
}
