package particles

import "github.com/google/uuid"

// NewSessionID returns a short random identifier for one process run.
func NewSessionID() string {
	return uuid.New().String()[:8]
}
