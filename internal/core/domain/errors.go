package domain

import "errors"

var (
	ErrObjectNotFound        = errors.New("Object not found")
	ErrInvalidParameters     = errors.New("Invalid parameters")
	ErrVideoSDKUnavailable   = errors.New("video SDK is not available")
	ErrPlatformUnavailable   = errors.New("platform is not available")
	ErrAlreadyMounted        = errors.New("call session already initialized")
	ErrSessionNotInitialized = errors.New("session is not initialized")
	ErrSessionNotConnected   = errors.New("session is not connected")
	ErrPublisherDestroyed    = errors.New("publisher destroyed")
)
