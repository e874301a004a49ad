package domain

import "github.com/agora-social/agora/pkg/errors"

// CounterField enumerates the denormalized counters of a user.
type CounterField int

const (
	CounterPostCount CounterField = iota + 1
	CounterFollowerCount
)

// Column returns the database column of the counter.
func (f CounterField) Column() string {
	switch f {
	case CounterPostCount:
		return "post_count"
	case CounterFollowerCount:
		return "follower_count"
	default:
		return ""
	}
}

func (f CounterField) String() string {
	switch f {
	case CounterPostCount:
		return "postCount"
	case CounterFollowerCount:
		return "followerCount"
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
	case "postCount":
		return CounterPostCount, nil
	case "followerCount":
		return CounterFollowerCount, nil
	default:
		return 0, errors.BadRequest("unknown user counter " + name)
	}
}
