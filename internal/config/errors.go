package config

import "errors"

var (
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidWorkers is returned when workers is not greater than 0
	ErrInvalidWorkers = errors.New("workers must be greater than 0")
	// ErrInvalidFormat is returned when the output format is neither csv nor json
	ErrInvalidFormat = errors.New("format must be 'csv' or 'json'")
	// ErrEmptyVideoProvider is returned when a video provider marker is blank
	ErrEmptyVideoProvider = errors.New("video_providers cannot contain empty entries")
	// ErrInvalidLogFormat is returned when log format is neither json nor text
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'text'")
)
