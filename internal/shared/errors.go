package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization errors
	ErrAuthFailed   = fmt.Errorf("authorization failed")
	ErrNoToken      = fmt.Errorf("no token present")
	ErrTokenExpired = fmt.Errorf("access token expired")
	ErrTokenInvalid = fmt.Errorf("access token rejected by provider")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// Delivery and persistence errors
	ErrNetworkFailure = fmt.Errorf("network request failed")
	ErrPersistence    = fmt.Errorf("local persistence failed")
	ErrNotConnected   = fmt.Errorf("no linked account")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
