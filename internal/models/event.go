package models

// Feed event types published to connected clients.
const (
	EventPostCreated     = "post_created"
	EventPostVoteUpdated = "post_vote_updated"
)

// FeedEvent is the envelope pushed over pub/sub and WebSocket connections.
type FeedEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}
