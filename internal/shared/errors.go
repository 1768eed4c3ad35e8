package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// API and service errors
	ErrAPIRequest         = errors.New("API request failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrPartialPush        = errors.New("partial push")

	// Persistence errors. The entity variants match ErrNotFound.
	ErrNotFound         = errors.New("not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", ErrNotFound)
	ErrTrackNotFound    = fmt.Errorf("track %w", ErrNotFound)

	// Pipeline and job errors
	ErrUnknownStage = errors.New("unknown pipeline stage")
	ErrUnknownJob   = errors.New("unknown job kind")
	ErrQueueFull    = errors.New("job queue full")
	ErrQueueClosed  = errors.New("job queue closed")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
