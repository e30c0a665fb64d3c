// Package iohelper provides bounded-read helpers for probe response bodies.
// Every probe path reads bodies through these to cap memory per exchange and
// keep pooled connections reusable.
package iohelper

import (
	"io"
	"log/slog"
)

// Body size limits by use case.
const (
	// SmallMaxBodySize covers error pages and status endpoints (8KB).
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize covers general probe responses (1MB).
	DefaultMaxBodySize int64 = 1024 * 1024
)

// ReadBody reads from r with a size limit. A nil reader yields an empty
// slice, not an error; absent bodies are data to the differ, not faults.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyDefault reads from r with the default 1MB limit.
func ReadBodyDefault(r io.Reader) ([]byte, error) {
	return ReadBody(r, DefaultMaxBodySize)
}

// ReadBodySmall reads from r with an 8KB limit.
func ReadBodySmall(r io.Reader) ([]byte, error) {
	return ReadBody(r, SmallMaxBodySize)
}

// ReadBodyOrLog reads the body with ReadBodyDefault and logs a read failure
// instead of returning it. Probe loops use this so one truncated body never
// aborts a strategy pass.
func ReadBodyOrLog(r io.Reader, logger *slog.Logger) []byte {
	data, err := ReadBodyDefault(r)
	if err != nil && logger != nil {
		logger.Warn("body read failed", slog.String("error", err.Error()))
	}
	return data
}

// DrainAndClose reads any remaining data from r and closes it if it is a
// ReadCloser, so the underlying connection returns to the keep-alive pool.
// Drain is capped at 64KB. Always returns nil for use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
