package config

import "errors"

var (
	// ErrEmptyDataDir is returned when DataDir is the empty string.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidBlockCount is returned when NumBlocksPerFile is not positive.
	ErrInvalidBlockCount = errors.New("config: num blocks per file must be positive")

	// ErrInvalidLogLevel is returned when LogLevel is not one of the
	// recognized levels.
	ErrInvalidLogLevel = errors.New("config: invalid log level")

	// ErrConfigNotFound is returned by LoadConfig when the file does
	// not exist.
	ErrConfigNotFound = errors.New("config: file not found")

	// ErrInvalidConfigLine is returned by LoadConfig when a non-blank,
	// non-comment line cannot be parsed as key = value.
	ErrInvalidConfigLine = errors.New("config: invalid line")
)
