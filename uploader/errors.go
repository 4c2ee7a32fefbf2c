package uploader

import "errors"

var (
	// ErrInvalidArgument is returned by Submit for an empty chunk.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration is returned by Initialize for invalid settings or
	// when called more than once.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEngineInit is returned by Initialize when the transfer engine
	// cannot be constructed.
	ErrEngineInit = errors.New("transfer engine init failed")
	// ErrNotInitialized is returned by Start before a successful Initialize.
	ErrNotInitialized = errors.New("uploader not initialized")
	// ErrAlreadyRunning is returned by a second Start.
	ErrAlreadyRunning = errors.New("uploader already started")
	// ErrNotRunning is returned by Stop and Submit when no worker is running.
	ErrNotRunning = errors.New("uploader not running")
)
