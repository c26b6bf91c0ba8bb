// Package sse reads text/event-stream bodies.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Done is the payload OpenAI-compatible APIs send as the final data line.
const Done = "[DONE]"

const maxLineSize = 1024 * 1024

// Event is a single server-sent event. Multiple data lines are joined with "\n".
type Event struct {
	Type string
	Data string
	ID   string
}

// Reader parses server-sent events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader with a 64KB initial buffer and a 1MB line limit.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
// A trailing event without a blank line terminator is still returned.
func (r *Reader) Next() (*Event, error) {
	var (
		ev        Event
		dataLines []string
		seen      bool
	)

	flush := func() *Event {
		ev.Data = strings.Join(dataLines, "\n")
		return &ev
	}

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if seen {
				return flush(), nil
			}
			continue
		}

		// Comment lines are keep-alives.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			ev.Type = value
			seen = true
		case "data":
			dataLines = append(dataLines, value)
			seen = true
		case "id":
			ev.ID = value
			seen = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if seen {
		return flush(), nil
	}
	return nil, io.EOF
}

func splitField(line string) (string, string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	value := line[idx+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return line[:idx], value
}
