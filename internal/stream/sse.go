package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventName is the name of events sent without an "event:" field.
const DefaultEventName = "message"

// maxLineBytes bounds a single SSE line. A status snapshot for a few hundred
// units fits comfortably.
const maxLineBytes = 1 << 20

// Event is one dispatched server-sent event, or one WebSocket text frame.
type Event struct {
	Name string
	Data string
	ID   string
}

// Decoder reads text/event-stream frames from r.
type Decoder struct {
	scanner *bufio.Scanner
	retry   time.Duration
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineBytes)
	s.Split(scanLines)
	return &Decoder{scanner: s}
}

// Retry returns the last reconnection delay advertised by the server, or
// zero when none was sent.
func (d *Decoder) Retry() time.Duration { return d.retry }

// Next blocks until a complete event has been read. Comment frames and
// events without data are skipped. It returns io.EOF when the stream ends
// cleanly between events and io.ErrUnexpectedEOF when it ends mid-event.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    strings.Builder
		hasData bool
		pending bool
	)
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if hasData {
				ev.Data = data.String()
				if ev.Name == "" {
					ev.Name = DefaultEventName
				}
				return ev, nil
			}
			ev, data, pending = Event{}, strings.Builder{}, false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		pending = true

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "event":
			ev.Name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				ev.ID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		return Event{}, io.ErrUnexpectedEOF
	}
	return Event{}, io.EOF
}

// scanLines splits on \n, \r\n or a lone \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell \r from \r\n.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ErrStreamClosed is reported by a source whose server ended the stream.
var ErrStreamClosed = errors.New("stream closed by server")
