// Package mcp implements the Model Context Protocol server for vibemcp.
package mcp

import (
	"context"
	"errors"
	"fmt"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

// Custom MCP error codes for vibemcp.
const (
	// ErrCodeNotFound indicates a missing document, project, or subscription.
	ErrCodeNotFound = -32001

	// ErrCodeAlreadyExists indicates a creation target that already exists.
	ErrCodeAlreadyExists = -32002

	// ErrCodePermissionDenied indicates a write rejected in read-only mode.
	ErrCodePermissionDenied = -32003

	// ErrCodeLimitExceeded indicates an exceeded registration cap.
	ErrCodeLimitExceeded = -32004

	// ErrCodeUnsafeURL indicates a webhook URL rejected by the SSRF guard.
	ErrCodeUnsafeURL = -32005

	// ErrCodeIndexFailed indicates a write landed but indexing failed.
	ErrCodeIndexFailed = -32006

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32007

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
// Known VibeError codes map to dedicated MCP codes; everything else
// degrades to an internal error without leaking detail.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ve *verrors.VibeError
	if errors.As(err, &ve) {
		return mapVibeError(ve)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a
// custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resource URIs.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapVibeError converts a VibeError to an MCPError.
func mapVibeError(ve *verrors.VibeError) *MCPError {
	message := ve.Message
	if ve.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ve.Message, ve.Suggestion)
	}

	switch ve.Code {
	case verrors.ErrCodeNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case verrors.ErrCodeAlreadyExists:
		return &MCPError{Code: ErrCodeAlreadyExists, Message: message}
	case verrors.ErrCodePermissionDenied:
		return &MCPError{Code: ErrCodePermissionDenied, Message: message}
	case verrors.ErrCodeLimitExceeded:
		return &MCPError{Code: ErrCodeLimitExceeded, Message: message}
	case verrors.ErrCodeUnsafeURL:
		return &MCPError{Code: ErrCodeUnsafeURL, Message: message}
	case verrors.ErrCodeIndexFailed:
		return &MCPError{Code: ErrCodeIndexFailed, Message: message}
	case verrors.ErrCodeInvalidArgument, verrors.ErrCodeInvalidPath, verrors.ErrCodeInvalidQuery:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	}

	switch ve.Category {
	case verrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case verrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
