// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

// APIError is a structured error response from the history REST
// endpoint. Callers can use errors.As to extract it:
//
//	var apiErr *chat.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == chat.ErrCodeRoomNotFound { ... }
//	}
type APIError struct {
	// Code is the application error code (e.g., "ROOM_NOT_FOUND").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Error codes the history endpoint returns.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeRoomNotFound = "ROOM_NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
