package errors

import "net/http"

// Error codes for the message pipeline. Handlers translate these into
// user-facing, non-fatal feedback; none of them should ever crash the
// process.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeCredentialPoolExhausted = "CREDENTIAL_POOL_EXHAUSTED"
	CodeDecryptionFailed        = "DECRYPTION_FAILED"
	CodeStore                   = "STORE_ERROR"
	CodeSendInProgress          = "SEND_IN_PROGRESS"
	CodeChatNotFound            = "CHAT_NOT_FOUND"
)

// NewValidationError marks invalid user input, recovered locally
func NewValidationError(message string) *AppError {
	return NewBadRequestError(CodeValidation, message)
}

// NewCredentialPoolExhaustedError indicates both credential slots failed
// within one logical completion call. Retryable by the user.
func NewCredentialPoolExhaustedError() *AppError {
	return NewError(http.StatusServiceUnavailable, CodeCredentialPoolExhausted,
		"The assistant is experiencing high demand. Please try again in a few minutes.")
}

// NewDecryptionError indicates a stored message could not be decrypted
// (corrupt payload, tag mismatch, or wrong key). Recovered per message.
func NewDecryptionError(err error) *AppError {
	return NewInternalServerError(CodeDecryptionFailed, "Unable to decrypt message").WithDetails(err.Error())
}

// NewStoreError wraps an underlying persistence failure
func NewStoreError(err error) *AppError {
	return NewInternalServerError(CodeStore, "Storage operation failed").WithDetails(err.Error())
}

// NewSendInProgressError rejects a send while another one for the same chat
// is still outstanding, keeping per-chat writes serialized.
func NewSendInProgressError(chatID string) *AppError {
	return NewConflictError(CodeSendInProgress, "A message for this chat is already being processed").WithDetails(chatID)
}

// NewChatNotFoundError indicates the chat does not exist or belongs to
// another user
func NewChatNotFoundError(chatID string) *AppError {
	return NewNotFoundError(CodeChatNotFound, "Chat not found").WithDetails(chatID)
}
