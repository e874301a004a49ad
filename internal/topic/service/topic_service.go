package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/internal/topic/repository"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/pagination"
)

// TopicService handles topic management operations.
type TopicService struct {
	repo   repository.Repository
	logger interfaces.Logger
}

// NewTopicService creates a new topic service.
func NewTopicService(repo repository.Repository, logger interfaces.Logger) *TopicService {
	return &TopicService{
		repo:   repo,
		logger: logger.WithFields(interfaces.String("service", "topic")),
	}
}

// CreateTopic creates a topic with a unique name.
func (s *TopicService) CreateTopic(ctx context.Context, name, color string) (*domain.Topic, error) {
	name = strings.TrimSpace(name)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate topic id: %w", err)
	}
	topic, err := domain.NewTopic(id.String(), name, color)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, topic); err != nil {
		return nil, err
	}

	s.logger.Info("topic created", interfaces.String("topic_id", topic.ID), interfaces.String("name", topic.Name))
	return topic, nil
}

// GetTopic retrieves a topic by ID.
func (s *TopicService) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	return s.repo.FindByID(ctx, id)
}

// GetTopicByName retrieves a topic by its exact name.
func (s *TopicService) GetTopicByName(ctx context.Context, name string) (*domain.Topic, error) {
	if name == "" {
		return nil, errors.BadRequest("topic name is required")
	}
	return s.repo.FindByCond(ctx, domain.Condition{Name: name})
}

// ListTopics lists topics whose name contains cond.Name.
func (s *TopicService) ListTopics(ctx context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Topic], error) {
	return s.repo.List(ctx, cond, paging.Normalize(domain.SortColumns...))
}

// ListTopicsByIDs returns the topics with the given ids, in no particular order.
func (s *TopicService) ListTopicsByIDs(ctx context.Context, ids []string) ([]domain.Topic, error) {
	return s.repo.ListByIDs(ctx, ids)
}

// UpdateTopic applies a partial update.
func (s *TopicService) UpdateTopic(ctx context.Context, id string, patch domain.Update) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if patch.Name != nil {
		if err := s.ensureNameFree(ctx, *patch.Name, id); err != nil {
			return err
		}
	}
	return s.repo.Update(ctx, id, patch)
}

// DeleteTopic deletes a topic.
func (s *TopicService) DeleteTopic(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("topic deleted", interfaces.String("topic_id", id))
	return nil
}

func (s *TopicService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByCond(ctx, domain.Condition{Name: name})
	switch {
	case errors.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return errors.Conflict("topic name already exists")
	default:
		return nil
	}
}
