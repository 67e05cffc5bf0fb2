package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewAttemptID returns a short unique id for one delivery attempt, used to
// correlate posting history rows with log lines.
func NewAttemptID() (string, error) {
	return gonanoid.New(12)
}
