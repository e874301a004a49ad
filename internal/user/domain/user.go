package domain

import (
	"regexp"
	"time"

	"github.com/agora-social/agora/pkg/errors"
)

// Entity is the cache key segment for users.
const Entity = "user"

// Role of a user account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status of a user account
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
	StatusDeleted  Status = "deleted"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,25}$`)

// SortColumns are the columns a user list may be ordered by. The first is the default.
var SortColumns = []string{"created_at", "username", "post_count", "follower_count"}

// User represents a user profile with its denormalized counters
type User struct {
	ID            string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username      string    `json:"username" gorm:"uniqueIndex;not null"`
	FirstName     string    `json:"firstName" gorm:"not null"`
	LastName      string    `json:"lastName" gorm:"not null"`
	Avatar        string    `json:"avatar,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	WebsiteURL    string    `json:"websiteUrl,omitempty"`
	Role          Role      `json:"role" gorm:"type:varchar(16);not null;default:'user'"`
	Status        Status    `json:"status" gorm:"type:varchar(16);not null;default:'active'"`
	FollowerCount int       `json:"followerCount" gorm:"not null;default:0"`
	PostCount     int       `json:"postCount" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// NewUser validates the profile fields and returns an active user.
func NewUser(id, username, firstName, lastName string) (*User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, errors.BadRequest("username must be 3-25 letters, digits or underscores")
	}
	if len(firstName) < 2 || len(lastName) < 2 {
		return nil, errors.BadRequest("first and last name must be at least 2 characters")
	}

	now := time.Now().UTC()
	return &User{
		ID:        id,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Role:      RoleUser,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Condition filters users by exact field values.
type Condition struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Status    Status `json:"status,omitempty"`
}

// Empty reports whether c filters nothing.
func (c Condition) Empty() bool {
	return c == Condition{}
}

// Matches reports whether u satisfies every set filter.
func (c Condition) Matches(u *User) bool {
	return (c.Username == "" || u.Username == c.Username) &&
		(c.FirstName == "" || u.FirstName == c.FirstName) &&
		(c.LastName == "" || u.LastName == c.LastName) &&
		(c.Role == "" || u.Role == c.Role) &&
		(c.Status == "" || u.Status == c.Status)
}

// Update is a partial profile update.
type Update struct {
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	WebsiteURL *string `json:"websiteUrl,omitempty"`
	Status     *Status `json:"status,omitempty"`
}

// Columns returns the column map for a gorm Updates call.
func (u Update) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	set("first_name", u.FirstName)
	set("last_name", u.LastName)
	set("avatar", u.Avatar)
	set("bio", u.Bio)
	set("website_url", u.WebsiteURL)
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	return cols
}

// Apply writes the set fields of u onto usr.
func (u Update) Apply(usr *User) {
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&usr.FirstName, u.FirstName)
	apply(&usr.LastName, u.LastName)
	apply(&usr.Avatar, u.Avatar)
	apply(&usr.Bio, u.Bio)
	apply(&usr.WebsiteURL, u.WebsiteURL)
	if u.Status != nil {
		usr.Status = *u.Status
	}
	usr.UpdatedAt = time.Now().UTC()
}
