// Package apperr holds the error taxonomy shared by the chat pipeline.
// Callers wrap these with fmt.Errorf("...: %w", err) and test with errors.Is.
package apperr

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotAParticipant      = errors.New("sender is not a participant of the conversation")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrMalformedEvent       = errors.New("malformed event")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrContentTooLong       = errors.New("message content is too long")
)

// Wire codes carried by rejected events.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	CodeNotAParticipant      = "NOT_A_PARTICIPANT"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeMalformedEvent       = "MALFORMED_EVENT"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeInternal             = "INTERNAL"
)

// Code maps an error to its wire code. Unknown errors map to CodeInternal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrConversationNotFound):
		return CodeConversationNotFound
	case errors.Is(err, ErrMessageNotFound):
		return CodeMessageNotFound
	case errors.Is(err, ErrNotAParticipant):
		return CodeNotAParticipant
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrStorageUnavailable):
		return CodeStorageUnavailable
	case errors.Is(err, ErrMalformedEvent):
		return CodeMalformedEvent
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong):
		return CodeInvalidArgument
	default:
		return CodeInternal
	}
}
