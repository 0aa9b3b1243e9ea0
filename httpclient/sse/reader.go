// Package sse reads Server-Sent Events streams.
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line. Record payloads can be large.
const maxLineSize = 4 << 20

// Event is a single server-sent event.
type Event struct {
	// Event is the event name ("event:" line). Empty means "message".
	Event string
	// Data is the payload. Multi-line data is joined with newlines.
	Data string
	// ID is the event id ("id:" line).
	ID string
	// Retry is the reconnection hint, zero when absent.
	Retry time.Duration
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next event. Returns io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying stream.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates an SSE reader from a readable stream.
func NewReader(body io.ReadCloser) Reader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &reader{scanner: s, body: body}
}

// Next returns the next event. An event is dispatched on a blank line once
// any of data, event or id was seen, so a bare "event:"/"id:" block such
// as a connect handshake with empty data is still delivered.
func (r *reader) Next() (*Event, error) {
	var (
		event   Event
		pending bool
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if pending {
				return &event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
			pending = true
		case "event":
			event.Event = value
			pending = true
		case "id":
			event.ID = value
			pending = true
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				event.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if pending {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	return r.body.Close()
}

func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
