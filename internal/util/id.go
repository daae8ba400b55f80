package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32 character hex id, used for request, job and
// consumer ids.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
