package export

import "errors"

var (
	// ErrUnsupportedFormat is returned for any format token other than csv or json
	ErrUnsupportedFormat = errors.New("unsupported file format, available formats: 'csv', 'json'")
	// ErrEmptyPath is returned when no output path is given
	ErrEmptyPath = errors.New("output path cannot be empty")
)
