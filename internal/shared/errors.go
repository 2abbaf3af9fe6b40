package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthorized = fmt.Errorf("no usable token, authorization required")
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrNoSession     = fmt.Errorf("no valid session and no session id provided")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// API and storage errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")

	// Input validation errors
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrBadPlaylistAddress = fmt.Errorf("unparseable playlist address")
)
