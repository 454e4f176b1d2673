package console

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Reader reads sanitized lines from an input stream. Reads happen on a pump
// goroutine so ReadLine can give up when its context is done.
type Reader struct {
	src   *bufio.Reader
	lines chan lineResult
	once  sync.Once
}

type lineResult struct {
	text string
	err  error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: bufio.NewReader(r)}
}

func (r *Reader) pump() {
	defer close(r.lines)
	for {
		text, err := r.src.ReadString('\n')
		if text != "" {
			r.lines <- lineResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				r.lines <- lineResult{err: err}
			}
			return
		}
	}
}

// ReadLine returns the next non-empty line, trimmed and sanitized.
// Lines that fail sanitization are returned with the error so the caller
// can tell the user; io.EOF means the input is exhausted.
func (r *Reader) ReadLine(ctx context.Context) (string, error) {
	r.once.Do(func() {
		r.lines = make(chan lineResult)
		go r.pump()
	})

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-r.lines:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			text, err := SanitizeInput(res.text)
			if err != nil {
				return "", err
			}
			if text == "" {
				continue
			}
			return text, nil
		}
	}
}
