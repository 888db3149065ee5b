package ioutil

import (
	"fmt"
	"io"
)

// maxDrain bounds how much of an unread body is discarded so the
// connection can be reused
const maxDrain = 4 << 10

// ReadLimited reads up to limit bytes from r and returns the content as a string.
// A read failure is described in the returned string; the result is meant
// for error messages and logs.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// DrainClose discards what is left of a response body, up to a small
// bound, and closes it
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxDrain))
	_ = rc.Close()
}
