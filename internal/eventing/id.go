package eventing

import (
	"strings"

	"github.com/google/uuid"
)

var eventNamespace = uuid.MustParse("3f1c7f52-8a0e-5b8e-9d2c-6a4f1e0b7c21")

// NewEventID generates a random event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// DerivedEventID returns a stable identifier for the given parts, so the
// same logical event always maps to the same outbox row.
func DerivedEventID(parts ...string) string {
	return uuid.NewSHA1(eventNamespace, []byte(strings.Join(parts, "|"))).String()
}
