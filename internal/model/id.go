package model

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// jobIDPattern matches UUID v4 strings: version nibble 4, variant nibble in {8,9,a,b}.
var jobIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NewJobID generates a random UUID v4 string for use as a job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// ValidJobID reports whether s is a well-formed UUID v4 string.
func ValidJobID(s string) bool {
	return jobIDPattern.MatchString(s)
}

// NewConnID generates a ULID string identifying a single push connection.
func NewConnID() string {
	return ulid.Make().String()
}
