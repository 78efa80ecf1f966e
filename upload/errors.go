package upload

import (
	"fmt"
	"net/http"
)

// Code classifies an upload failure. Codes are part of the API
// contract: clients branch on them, so they are stable strings.
type Code string

const (
	CodeConfiguration          Code = "CONFIGURATION_ERROR"
	CodeInvalidContentType     Code = "INVALID_CONTENT_TYPE"
	CodeFormParse              Code = "FORM_PARSE_ERROR"
	CodeNoFile                 Code = "NO_FILE_PROVIDED"
	CodeInvalidFileType        Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge           Code = "FILE_TOO_LARGE"
	CodeWebhookError           Code = "WEBHOOK_ERROR"
	CodeWebhookInvalidResponse Code = "WEBHOOK_INVALID_RESPONSE"
	CodeWebhookTimeout         Code = "WEBHOOK_TIMEOUT"
	CodeWebhookNetwork         Code = "WEBHOOK_NETWORK_ERROR"
	CodeWebhookConnection      Code = "WEBHOOK_CONNECTION_ERROR"
	CodeInternal               Code = "INTERNAL_SERVER_ERROR"
)

// Error is a structured upload failure. Message is safe to show to the
// user; Details carries diagnostic context for logs and API responses.
type Error struct {
	Code    Code   `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an upload error with optional details.
func NewError(code Code, message, details string) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// HTTPStatus maps the error code onto the response status the upload
// endpoint returns.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidContentType, CodeFormParse, CodeNoFile, CodeInvalidFileType:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeWebhookTimeout:
		return http.StatusGatewayTimeout
	case CodeWebhookError, CodeWebhookInvalidResponse, CodeWebhookNetwork, CodeWebhookConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
