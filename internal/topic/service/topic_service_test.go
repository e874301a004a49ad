package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/internal/topic/repository"
	"github.com/agora-social/agora/internal/topic/service"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/logger"
	"github.com/agora-social/agora/pkg/pagination"
)

type TopicServiceTestSuite struct {
	suite.Suite

	ctx     context.Context
	service *service.TopicService
}

func (suite *TopicServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	store := cache.NewService(cache.NewMemoryBackend(0), logger.NewNoop())
	repo := repository.NewCachedRepository(repository.NewMemoryRepository(), store, cachekey.New("agora:"), logger.NewNoop(), cache.DefaultTTLs())
	suite.service = service.NewTopicService(repo, logger.NewNoop())
}

func (suite *TopicServiceTestSuite) TestCreateTopic_Success() {
	// Act
	topic, err := suite.service.CreateTopic(suite.ctx, "  Golang ", "")

	// Assert
	suite.Require().NoError(err)
	suite.Equal("Golang", topic.Name)
	suite.Equal(domain.DefaultColor, topic.Color)
	suite.Len(topic.ID, 36)

	found, err := suite.service.GetTopicByName(suite.ctx, "Golang")
	suite.Require().NoError(err)
	suite.Equal(topic.ID, found.ID)
}

func (suite *TopicServiceTestSuite) TestCreateTopic_NameTaken() {
	// Arrange
	_, err := suite.service.CreateTopic(suite.ctx, "Golang", "")
	suite.Require().NoError(err)

	// Act
	_, err = suite.service.CreateTopic(suite.ctx, "Golang", "#ffffff")

	// Assert
	suite.True(errors.IsConflict(err))
}

func (suite *TopicServiceTestSuite) TestCreateTopic_Invalid() {
	_, err := suite.service.CreateTopic(suite.ctx, "Go", "")
	suite.True(errors.IsBadRequest(err))

	_, err = suite.service.CreateTopic(suite.ctx, "Golang", "green")
	suite.True(errors.IsBadRequest(err))
}

func (suite *TopicServiceTestSuite) TestUpdateTopic() {
	// Arrange
	golang, err := suite.service.CreateTopic(suite.ctx, "Golang", "")
	suite.Require().NoError(err)
	_, err = suite.service.CreateTopic(suite.ctx, "Python", "")
	suite.Require().NoError(err)

	// Act & Assert
	taken := "Python"
	suite.True(errors.IsConflict(suite.service.UpdateTopic(suite.ctx, golang.ID, domain.Update{Name: &taken})))

	same := "Golang"
	suite.NoError(suite.service.UpdateTopic(suite.ctx, golang.ID, domain.Update{Name: &same}))

	color := "#00add8"
	suite.Require().NoError(suite.service.UpdateTopic(suite.ctx, golang.ID, domain.Update{Color: &color}))
	found, err := suite.service.GetTopic(suite.ctx, golang.ID)
	suite.Require().NoError(err)
	suite.Equal("#00add8", found.Color)

	suite.True(errors.IsNotFound(suite.service.UpdateTopic(suite.ctx, "missing", domain.Update{Color: &color})))
}

func (suite *TopicServiceTestSuite) TestDeleteTopic() {
	topic, err := suite.service.CreateTopic(suite.ctx, "Golang", "")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteTopic(suite.ctx, topic.ID))
	_, err = suite.service.GetTopic(suite.ctx, topic.ID)
	suite.True(errors.IsNotFound(err))
	suite.True(errors.IsNotFound(suite.service.DeleteTopic(suite.ctx, topic.ID)))
}

func (suite *TopicServiceTestSuite) TestListTopics() {
	for _, name := range []string{"Golang", "Gopher", "Rust"} {
		_, err := suite.service.CreateTopic(suite.ctx, name, "")
		suite.Require().NoError(err)
	}

	page, err := suite.service.ListTopics(suite.ctx, domain.Condition{Name: "Go"}, pagination.Paging{Limit: 500, Sort: "drop table"})
	suite.Require().NoError(err)
	suite.EqualValues(2, page.Total)
	suite.Equal(pagination.MaxLimit, page.Paging.Limit)
	suite.Equal("created_at", page.Paging.Sort)

	byIDs, err := suite.service.ListTopicsByIDs(suite.ctx, nil)
	suite.Require().NoError(err)
	suite.Empty(byIDs)
}

func TestTopicServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TopicServiceTestSuite))
}
