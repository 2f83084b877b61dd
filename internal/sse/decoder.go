// Package sse decodes server-sent event streams into data frames.
//
// The debate producer emits newline-delimited frames of the form
// "data: <json>"; blank lines and any other field lines are ignored.
// The decoder buffers bytes internally, so chunk boundaries on the
// underlying reader never split a frame: a partial line (including a
// partial multi-byte UTF-8 sequence) is carried over until its
// terminating newline arrives.
package sse

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// dataPrefix marks lines that carry a frame payload.
const dataPrefix = "data: "

// Decoder extracts data frames from a byte stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the payload of the next data frame. It returns io.EOF
// once the stream ends. An unterminated trailing line at end-of-stream
// is discarded rather than emitted as a frame.
func (d *Decoder) Next() (string, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No terminating newline: drop the fragment.
				return "", io.EOF
			}
			return "", err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		if !utf8.ValidString(payload) {
			// Garbled frame; skip it and keep the stream alive.
			continue
		}
		return payload, nil
	}
}
