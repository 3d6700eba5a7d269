package parser

import (
	"bufio"
	"io"
)

const (
	initialScanBufSize = 64 * 1024        // 64KB
	maxLineSize        = 20 * 1024 * 1024 // 20MB
)

// lineReader reads JSONL files line by line, skipping lines that
// exceed maxLen rather than aborting. Partially written or oversized
// lines are the caller's signal to skip, never a fatal error.
type lineReader struct {
	r      *bufio.Reader
	maxLen int
	buf    []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:      bufio.NewReaderSize(r, initialScanBufSize),
		maxLen: maxLineSize,
		buf:    make([]byte, 0, initialScanBufSize),
	}
}

// next returns the next non-empty line (without trailing newline)
// and true, or ("", false) at EOF.
func (lr *lineReader) next() (string, bool) {
	for {
		line, err := lr.readLine()
		if err != nil {
			return "", false
		}
		if line != "" {
			return line, true
		}
		// Blank or skipped oversized line.
	}
}

func (lr *lineReader) readLine() (string, error) {
	lr.buf = lr.buf[:0]
	oversized := false

	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if len(lr.buf) > 0 && err == io.EOF {
				break
			}
			return "", err
		}

		if oversized {
			if !isPrefix {
				return "", nil // done skipping
			}
			continue
		}

		lr.buf = append(lr.buf, chunk...)

		if len(lr.buf) > lr.maxLen {
			oversized = true
			lr.buf = lr.buf[:0]
			if !isPrefix {
				return "", nil
			}
			continue
		}

		if !isPrefix {
			break
		}
	}

	return string(lr.buf), nil
}
