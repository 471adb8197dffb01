package domain

import "errors"

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrRefreshInProgress indicates a refresh was requested while one was
	// already in flight; the request was not performed
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrParentalLocked indicates the channel is restricted by the parental
	// lock and the operation fails closed
	ErrParentalLocked = errors.New("channel is parental locked")

	// ErrBackendRequest indicates a request to a backend client failed
	ErrBackendRequest = errors.New("backend request failed")

	// ErrConnection indicates a backend connection problem
	ErrConnection = errors.New("connection error")
)
