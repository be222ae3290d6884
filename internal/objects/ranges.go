package objects

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a resolved, inclusive byte span within an object of known size.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// contentRange renders the Content-Range header value for a 206 response.
func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}

// UnsatisfiableRangeError marks a syntactically valid Range header whose span
// falls outside the object. Handlers answer it with 416 and the object size.
type UnsatisfiableRangeError struct {
	Size int64
}

func (e *UnsatisfiableRangeError) Error() string {
	return fmt.Sprintf("requested range not satisfiable (size %d)", e.Size)
}

// ContentRange is the `bytes */{size}` value a 416 response carries.
func (e *UnsatisfiableRangeError) ContentRange() string {
	return fmt.Sprintf("bytes */%d", e.Size)
}

// parseRange resolves a `bytes=start-end` header against an object size,
// requiring start <= end < size. Malformed and out-of-bounds headers both
// yield UnsatisfiableRangeError so the handler answers 416.
func parseRange(header string, size int64) (*byteRange, error) {
	unsatisfiable := &UnsatisfiableRangeError{Size: size}

	span, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return nil, unsatisfiable
	}
	startRaw, endRaw, ok := strings.Cut(span, "-")
	if !ok {
		return nil, unsatisfiable
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startRaw), 10, 64)
	if err != nil || start < 0 {
		return nil, unsatisfiable
	}

	end := size - 1
	if trimmed := strings.TrimSpace(endRaw); trimmed != "" {
		end, err = strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, unsatisfiable
		}
	}

	if start > end || end >= size {
		return nil, unsatisfiable
	}
	return &byteRange{start: start, end: end}, nil
}
