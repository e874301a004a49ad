package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/agora-social/agora/pkg/errors"
)

// Entity is the cache key segment for posts.
const Entity = "post"

// Type classifies a post by its attachments.
type Type string

const (
	TypeText  Type = "text"
	TypeMedia Type = "media"
)

// Valid reports whether t is a known post type.
func (t Type) Valid() bool {
	return t == TypeText || t == TypeMedia
}

// TypeFor returns media when image is set and text otherwise.
func TypeFor(image string) Type {
	if image != "" {
		return TypeMedia
	}
	return TypeText
}

// SortColumns are the columns a post list may be ordered by. The first is the default.
var SortColumns = []string{"created_at", "liked_count", "comment_count"}

// Post represents a user post filed under a topic
type Post struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	Image        string    `json:"image,omitempty"`
	AuthorID     string    `json:"authorId" gorm:"type:varchar(36);not null;index"`
	TopicID      string    `json:"topicId" gorm:"type:varchar(36);not null;index"`
	IsFeatured   bool      `json:"isFeatured" gorm:"not null;default:false"`
	CommentCount int       `json:"commentCount" gorm:"not null;default:0"`
	LikedCount   int       `json:"likedCount" gorm:"not null;default:0"`
	Type         Type      `json:"type" gorm:"type:varchar(16);not null;default:'text'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Post) TableName() string {
	return "posts"
}

// NewPost validates content and image and derives the post type.
func NewPost(id, authorID, topicID, content, image string) (*Post, error) {
	if authorID == "" || topicID == "" {
		return nil, errors.BadRequest("author and topic are required")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := validateImage(image); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Post{
		ID:        id,
		Content:   content,
		Image:     image,
		AuthorID:  authorID,
		TopicID:   topicID,
		Type:      TypeFor(image),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Condition filters posts. Str matches content by substring.
type Condition struct {
	Str        string `json:"str,omitempty"`
	UserID     string `json:"userId,omitempty"`
	TopicID    string `json:"topicId,omitempty"`
	IsFeatured *bool  `json:"isFeatured,omitempty"`
	Type       Type   `json:"type,omitempty"`
}

// Empty reports whether c filters nothing.
func (c Condition) Empty() bool {
	return c == Condition{}
}

// Matches reports whether p satisfies every set filter.
func (c Condition) Matches(p *Post) bool {
	switch {
	case c.Str != "" && !strings.Contains(p.Content, c.Str):
		return false
	case c.UserID != "" && p.AuthorID != c.UserID:
		return false
	case c.TopicID != "" && p.TopicID != c.TopicID:
		return false
	case c.IsFeatured != nil && p.IsFeatured != *c.IsFeatured:
		return false
	case c.Type != "" && p.Type != c.Type:
		return false
	}
	return true
}

// Update is a partial post update. Setting Image also sets the post type.
type Update struct {
	Content    *string `json:"content,omitempty"`
	Image      *string `json:"image,omitempty"`
	IsFeatured *bool   `json:"isFeatured,omitempty"`
}

// Validate checks every field that is set.
func (u Update) Validate() error {
	if u.Content != nil {
		if err := validateContent(*u.Content); err != nil {
			return err
		}
	}
	if u.Image != nil {
		if err := validateImage(*u.Image); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the column map for a gorm Updates call.
func (u Update) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Content != nil {
		cols["content"] = *u.Content
	}
	if u.Image != nil {
		cols["image"] = *u.Image
		cols["type"] = TypeFor(*u.Image)
	}
	if u.IsFeatured != nil {
		cols["is_featured"] = *u.IsFeatured
	}
	return cols
}

// Apply writes the set fields of u onto p.
func (u Update) Apply(p *Post) {
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Image != nil {
		p.Image = *u.Image
		p.Type = TypeFor(*u.Image)
	}
	if u.IsFeatured != nil {
		p.IsFeatured = *u.IsFeatured
	}
	p.UpdatedAt = time.Now().UTC()
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.BadRequest("the content must be at least 1 characters")
	}
	return nil
}

func validateImage(image string) error {
	if image == "" {
		return nil
	}
	u, err := url.ParseRequestURI(image)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.BadRequest("invalid image url")
	}
	return nil
}
