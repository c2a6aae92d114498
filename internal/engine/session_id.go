package engine

import "github.com/google/uuid"

// NewSessionID mints an opaque session identifier for callers that don't
// arrive with one of their own. The protocol layer uses it for every
// connection and adds the peer address to that connection's log lines.
func NewSessionID() string {
	return uuid.NewString()
}
