package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agora-social/agora/internal/events"
	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/internal/post/repository"
	topicdomain "github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/pkg/errors"
	pkgevents "github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/pagination"
)

// TopicReader resolves the topic a post is filed under.
type TopicReader interface {
	GetTopic(ctx context.Context, id string) (*topicdomain.Topic, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event *pkgevents.Event) error
}

// PostService handles post management operations.
type PostService struct {
	repo           repository.Repository
	topics         TopicReader
	publisher      Publisher
	logger         interfaces.Logger
	publishTimeout time.Duration
}

// NewPostService creates a new post service.
func NewPostService(
	repo repository.Repository,
	topics TopicReader,
	publisher Publisher,
	logger interfaces.Logger,
	publishTimeout time.Duration,
) *PostService {
	return &PostService{
		repo:           repo,
		topics:         topics,
		publisher:      publisher,
		logger:         logger.WithFields(interfaces.String("service", "post")),
		publishTimeout: publishTimeout,
	}
}

// CreatePost files a post under an existing topic and announces it.
func (s *PostService) CreatePost(ctx context.Context, authorID, topicID, content, image string) (*domain.Post, error) {
	topic, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("topic not found")
		}
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate post id: %w", err)
	}
	post, err := domain.NewPost(id.String(), authorID, topic.ID, content, image)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, post); err != nil {
		return nil, err
	}

	s.publish(ctx, events.PostCreated, post)
	return post, nil
}

// GetPost retrieves a post by ID.
func (s *PostService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.repo.FindByID(ctx, id)
}

// ListPosts lists posts matching cond.
func (s *PostService) ListPosts(ctx context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Post], error) {
	if cond.Type != "" && !cond.Type.Valid() {
		return nil, errors.BadRequest("unknown post type")
	}
	return s.repo.List(ctx, cond, paging.Normalize(domain.SortColumns...))
}

// ListPostsByIDs returns the posts with the given ids.
func (s *PostService) ListPostsByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	return s.repo.ListByIDs(ctx, ids)
}

// UpdatePost applies a partial update on behalf of the author. Posts of
// other authors are reported as missing.
func (s *PostService) UpdatePost(ctx context.Context, id, requesterID string, patch domain.Update) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, patch)
}

// FeaturePost toggles the featured flag.
func (s *PostService) FeaturePost(ctx context.Context, id string, featured bool) error {
	return s.repo.Update(ctx, id, domain.Update{IsFeatured: &featured})
}

// DeletePost deletes a post on behalf of its author and announces it.
func (s *PostService) DeletePost(ctx context.Context, id, requesterID string) error {
	post, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.PostDeleted, post)
	return nil
}

func (s *PostService) owned(ctx context.Context, id, requesterID string) (*domain.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, errors.NotFound("post not found")
	}
	return post, nil
}

// publish announces a committed write. Failures are logged; the write stands.
func (s *PostService) publish(ctx context.Context, name string, post *domain.Post) {
	event, err := pkgevents.New(name, events.PostPayload{
		PostID:   post.ID,
		TopicID:  post.TopicID,
		AuthorID: post.AuthorID,
	})
	if err != nil {
		s.logger.Error("failed to build event", interfaces.String("event", name), interfaces.Error(err))
		return
	}

	if s.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event",
			interfaces.String("event", name),
			interfaces.String("event_id", event.ID),
			interfaces.String("post_id", post.ID),
			interfaces.Error(err),
		)
		return
	}
	s.logger.Debug("event published", interfaces.String("event", name), interfaces.String("event_id", event.ID))
}
