package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ChangeType is the kind of row change a database webhook reports.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Table is the only table whose inserts are relayed.
const Table = "bookings"

// ErrMalformedEvent is returned when a webhook body is absent or does not decode.
var ErrMalformedEvent = errors.New("malformed webhook payload")

// Event is a database change webhook body. Rows are kept raw since other
// tables share the webhook; Record is only decoded for booking inserts.
type Event struct {
	Type         ChangeType      `json:"type"`
	Table        string          `json:"table"`
	Schema       string          `json:"schema"`
	RawRecord    json.RawMessage `json:"record"`
	RawOldRecord json.RawMessage `json:"old_record"`

	Record *Booking `json:"-"`
}

// IsBookingInsert reports whether the event is a new row in the bookings table.
// The webhook source broadcasts every change, so anything else is filtered out.
func (e *Event) IsBookingInsert() bool {
	return e.Type == ChangeInsert && e.Table == Table
}

// DecodeEvent reads one event from r. An insert into bookings must carry a
// record that decodes as a Booking; other rows are not inspected.
func DecodeEvent(r io.Reader) (*Event, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	var event Event
	if err := json.NewDecoder(r).Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	event.Type = ChangeType(strings.ToUpper(string(event.Type)))

	if !event.IsBookingInsert() {
		return &event, nil
	}

	if isNull(event.RawRecord) {
		return nil, fmt.Errorf("%w: insert on %s without record", ErrMalformedEvent, Table)
	}

	var record Booking
	if err := json.Unmarshal(event.RawRecord, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event.Record = &record

	return &event, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
