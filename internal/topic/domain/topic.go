package domain

import (
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/agora-social/agora/pkg/errors"
)

const (
	// Entity is the cache key segment for topics.
	Entity = "topic"

	DefaultColor  = "#008000"
	MinNameLength = 3
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// SortColumns are the columns a topic list may be ordered by. The first is the default.
var SortColumns = []string{"created_at", "name", "post_count"}

// Topic represents a discussion topic posts are filed under
type Topic struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Color     string    `json:"color" gorm:"not null;default:'#008000'"`
	PostCount int       `json:"postCount" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Topic) TableName() string {
	return "topics"
}

// NewTopic validates name and color and returns a topic with a zero post count.
func NewTopic(id, name, color string) (*Topic, error) {
	if color == "" {
		color = DefaultColor
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateColor(color); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Topic{
		ID:        id,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Condition filters topics. Name matches exactly on lookups and by substring on lists.
type Condition struct {
	Name string `json:"name,omitempty"`
}

// Update is a partial topic update. Nil fields are left untouched.
type Update struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Validate checks every field that is set.
func (u Update) Validate() error {
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	if u.Color != nil {
		if err := validateColor(*u.Color); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the column map for a gorm Updates call.
func (u Update) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Color != nil {
		cols["color"] = *u.Color
	}
	return cols
}

// Apply writes the set fields of u onto t.
func (u Update) Apply(t *Topic) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Color != nil {
		t.Color = *u.Color
	}
	t.UpdatedAt = time.Now().UTC()
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) < MinNameLength {
		return errors.BadRequest("topic name is invalid, must be at least 3 characters")
	}
	return nil
}

func validateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return errors.BadRequest("topic color is invalid, must be a valid hex color code")
	}
	return nil
}
