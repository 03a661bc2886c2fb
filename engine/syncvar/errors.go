package syncvar

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownField is returned when a field name or index is not in the schema
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned when a value can not be converted to the field type
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidSchema is returned by SchemaBuilder.Build for malformed schemas
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrInvalidDirection is returned for sync directions that can never deliver a write
	ErrInvalidDirection = errors.New("invalid sync direction")
)

// TooManyTrackedFieldsError is returned when a schema chain has more fields than one dirty mask holds
type TooManyTrackedFieldsError struct {
	Schema string
	Count  int
	Max    int
}

func (e *TooManyTrackedFieldsError) Error() string {
	return fmt.Sprintf("schema %s has %d tracked fields, at most %d allowed", e.Schema, e.Count, e.Max)
}

// AuthorityError is returned when a role that is not allowed to write a field group tries to
type AuthorityError struct {
	Schema    string
	Field     string
	Role      Role
	Direction SyncDirection
}

func (e *AuthorityError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s may not write %s (%s)", e.Role, e.Schema, e.Direction)
	}
	return fmt.Sprintf("%s may not write %s.%s (%s)", e.Role, e.Schema, e.Field, e.Direction)
}

// DesyncError is returned when a payload does not match the local schema layout
//
// A desync is never repaired locally: the connection that delivered the payload should be dropped.
type DesyncError struct {
	Schema string
	Reason string
	Cause  error
}

func (e *DesyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("desync on %s: %s: %v", e.Schema, e.Reason, e.Cause)
	}
	return fmt.Sprintf("desync on %s: %s", e.Schema, e.Reason)
}

func desyncf(schema *Schema, cause error, format string, args ...interface{}) *DesyncError {
	return &DesyncError{
		Schema: schema.Name(),
		Reason: fmt.Sprintf(format, args...),
		Cause:  cause,
	}
}

// IsDesync checks if err (or its cause) is a DesyncError
func IsDesync(err error) bool {
	_, ok := errors.Cause(err).(*DesyncError)
	return ok
}

// IsAuthority checks if err (or its cause) is an AuthorityError
func IsAuthority(err error) bool {
	_, ok := errors.Cause(err).(*AuthorityError)
	return ok
}
