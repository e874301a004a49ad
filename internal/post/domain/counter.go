package domain

import "github.com/agora-social/agora/pkg/errors"

// CounterField enumerates the denormalized counters of a post.
type CounterField int

const (
	CounterCommentCount CounterField = iota + 1
	CounterLikedCount
)

// Column returns the database column of the counter.
func (f CounterField) Column() string {
	switch f {
	case CounterCommentCount:
		return "comment_count"
	case CounterLikedCount:
		return "liked_count"
	default:
		return ""
	}
}

func (f CounterField) String() string {
	switch f {
	case CounterCommentCount:
		return "commentCount"
	case CounterLikedCount:
		return "likedCount"
	default:
		return "unknown"
	}
}

// Valid reports whether f is a known counter.
func (f CounterField) Valid() bool {
	return f.Column() != ""
}

// ParseCounterField maps the wire name of a counter to its field.
func ParseCounterField(name string) (CounterField, error) {
	switch name {
	case "commentCount":
		return CounterCommentCount, nil
	case "likedCount":
		return CounterLikedCount, nil
	default:
		return 0, errors.BadRequest("unknown post counter " + name)
	}
}
