package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a CoreError, matching the taxonomy the
// orchestration pipeline reports back to callers and writes to the event log.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "InvalidInput"
	ErrInvalidReference   ErrorKind = "InvalidReference"
	ErrUnsupportedModality ErrorKind = "UnsupportedModality"
	ErrDialogueNotFound   ErrorKind = "DialogueNotFound"
	ErrDialogueClosed     ErrorKind = "DialogueClosed"
	ErrTurnClosed         ErrorKind = "TurnClosed"
	ErrInvalidParameters  ErrorKind = "InvalidParameters"
	ErrToolTimeout        ErrorKind = "ToolTimeout"
	ErrToolFailure        ErrorKind = "ToolFailure"
	ErrLLMTimeout         ErrorKind = "LLMTimeout"
	ErrLLMFailure         ErrorKind = "LLMFailure"
	ErrContextOverflow    ErrorKind = "ContextOverflow"
	ErrStorageFailure     ErrorKind = "StorageFailure"
	ErrNotFound           ErrorKind = "NotFound"
	ErrUnauthorized       ErrorKind = "Unauthorized"
)

// CoreError is the single error type surfaced across package boundaries. The
// Kind is what callers should branch on; Cause carries the underlying error
// for logging, never for control flow.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &CoreError{Kind: X}) match by Kind alone.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func NewError(kind ErrorKind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

func KindOf(err error) (ErrorKind, bool) {
	var ce *CoreError
	if err == nil {
		return "", false
	}
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
