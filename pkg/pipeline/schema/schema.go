package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Error marks an engine response that did not parse as the declared stage
// schema. It is a recoverable error class distinct from transport failure;
// the Differential stage retries it once.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: invalid engine response: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(stage string, err error) *Error {
	return &Error{Stage: stage, Err: err}
}

func IsError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// ExtractJSON isolates JSON content from an engine response that may be
// wrapped in prose or code fences.
func ExtractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}
