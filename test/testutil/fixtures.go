package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	postdomain "github.com/agora-social/agora/internal/post/domain"
	topicdomain "github.com/agora-social/agora/internal/topic/domain"
	userdomain "github.com/agora-social/agora/internal/user/domain"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateTestTopic creates a test topic with the default color.
func CreateTestTopic(name string) *topicdomain.Topic {
	now := time.Now().UTC()
	return &topicdomain.Topic{
		ID:        newID(),
		Name:      name,
		Color:     topicdomain.DefaultColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestPost creates a text post by authorID under topicID.
func CreateTestPost(authorID, topicID string) *postdomain.Post {
	now := time.Now().UTC()
	id := newID()
	return &postdomain.Post{
		ID:        id,
		Content:   fmt.Sprintf("post %s", id[len(id)-6:]),
		AuthorID:  authorID,
		TopicID:   topicID,
		Type:      postdomain.TypeText,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestUser creates an active user with default names.
func CreateTestUser(username string) *userdomain.User {
	now := time.Now().UTC()
	return &userdomain.User{
		ID:        newID(),
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Role:      userdomain.RoleUser,
		Status:    userdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
