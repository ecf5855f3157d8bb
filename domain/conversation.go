package domain

import "time"

// Conversation is a private thread between a homeowner and a tiler,
// optionally scoped to a task. TaskID == nil marks a pre-bid inquiry
// thread, which is keyed independently of any task-scoped thread between
// the same pair.
type Conversation struct {
	ID          string    `json:"id"`
	TaskID      *string   `json:"task_id,omitempty"`
	HomeownerID string    `json:"homeowner_id"`
	TilerID     string    `json:"tiler_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	if c == nil || userID == "" {
		return false
	}
	return c.HomeownerID == userID || c.TilerID == userID
}

// Message is an immutable, append-only entry within a conversation.
// At least one of Body/AttachmentURL is present. Ordering is by
// server-assigned CreatedAt ascending, with ID as tiebreaker.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body,omitempty"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) IsEmpty() bool {
	return m == nil || (m.Body == "" && m.AttachmentURL == "")
}
