package decode

import (
	"fmt"
	"strings"
)

// DecodeError is returned when an external tool invocation exits non-zero
// or produces unparsable output. It carries the captured stderr so callers
// can surface the tool's own diagnostics.
type DecodeError struct {
	Op     string // operation that failed, e.g. "probe", "extract_frame"
	Stderr string // captured standard error, may be empty
	Err    error  // underlying error (exec failure, parse failure)
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s failed: %v", e.Op, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		// Keep the tail of stderr; ffmpeg prints the actual failure last.
		const maxStderr = 512
		if len(s) > maxStderr {
			s = "..." + s[len(s)-maxStderr:]
		}
		msg += ": " + s
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(op string, stderr string, err error) *DecodeError {
	return &DecodeError{Op: op, Stderr: stderr, Err: err}
}
