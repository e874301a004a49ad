// Package events names the domain events exchanged between services and
// their payloads.
package events

const (
	// Post lifecycle events
	PostCreated = "post.created"
	PostDeleted = "post.deleted"
)

// PostPayload is carried by every post lifecycle event.
type PostPayload struct {
	PostID   string `json:"postId"`
	TopicID  string `json:"topicId"`
	AuthorID string `json:"authorId"`
}

// TopicTarget selects the topic a post event counts towards.
func TopicTarget(p PostPayload) string { return p.TopicID }

// AuthorTarget selects the user a post event counts towards.
func AuthorTarget(p PostPayload) string { return p.AuthorID }
