// Package services defines the business logic for chats, tutoring exchanges,
// and context compaction. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyPrompt is returned when a tutoring exchange carries neither text
	// nor audio.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a request to create a message exceeds the
	// maximum configured length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidProficiency is returned when a request carries a proficiency
	// level outside the closed set.
	ErrInvalidProficiency = errors.New("invalid proficiency level")

	// ErrInvalidSettings is returned when context settings fail validation
	// (e.g. a non-positive window size).
	ErrInvalidSettings = errors.New("invalid context settings")
)
