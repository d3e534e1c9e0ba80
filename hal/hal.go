// Package hal is the only contact point between the runtime and the
// machine it runs on: a simulated dual-core board on the host, real
// hardware under tinygo.
package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction, one status LED per core.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")
