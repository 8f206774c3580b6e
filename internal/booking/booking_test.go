package booking

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantInsert bool
		wantID     ID
	}{
		{
			name:       "booking insert with string id",
			body:       `{"type":"INSERT","table":"bookings","schema":"public","record":{"id":"42","business_name":"Acme Salon","service":"Haircut"},"old_record":null}`,
			wantInsert: true,
			wantID:     "42",
		},
		{
			name:       "booking insert with numeric id",
			body:       `{"type":"INSERT","table":"bookings","record":{"id":42}}`,
			wantInsert: true,
			wantID:     "42",
		},
		{
			name:       "integral float id",
			body:       `{"type":"INSERT","table":"bookings","record":{"id":42.0}}`,
			wantInsert: true,
			wantID:     "42",
		},
		{
			name:       "exponent id",
			body:       `{"type":"INSERT","table":"bookings","record":{"id":1e3}}`,
			wantInsert: true,
			wantID:     "1000",
		},
		{
			name:       "fractional id",
			body:       `{"type":"INSERT","table":"bookings","record":{"id":1.50}}`,
			wantInsert: true,
			wantID:     "1.5",
		},
		{
			name:       "lowercase type is normalised",
			body:       `{"type":"insert","table":"bookings","record":{"id":7}}`,
			wantInsert: true,
			wantID:     "7",
		},
		{
			name: "update is not an insert",
			body: `{"type":"UPDATE","table":"bookings","record":{"id":"1"},"old_record":{"id":"1"}}`,
		},
		{
			name: "insert on another table",
			body: `{"type":"INSERT","table":"contact_submissions","record":{"id":"1"}}`,
		},
		{
			name: "delete without record is fine",
			body: `{"type":"DELETE","table":"bookings","record":null,"old_record":{"id":"1"}}`,
		},
		{
			name: "foreign row with integer status",
			body: `{"type":"INSERT","table":"payments","record":{"id":1,"status":3}}`,
		},
		{
			name: "foreign row with boolean id",
			body: `{"type":"INSERT","table":"profiles","record":{"id":true,"services":{"a":1}}}`,
		},
		{
			name: "update with numeric service",
			body: `{"type":"UPDATE","table":"bookings","record":{"id":1,"service":7},"old_record":{"id":1,"service":6}}`,
		},
		{
			name:    "booking insert with null record",
			body:    `{"type":"INSERT","table":"bookings","record":null}`,
			wantErr: true,
		},
		{
			name:    "booking insert with mistyped status",
			body:    `{"type":"INSERT","table":"bookings","record":{"id":1,"status":3}}`,
			wantErr: true,
		},
		{
			name:    "booking insert without record",
			body:    `{"type":"INSERT","table":"bookings"}`,
			wantErr: true,
		},
		{
			name:    "empty body",
			body:    ``,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `type=INSERT`,
			wantErr: true,
		},
		{
			name:    "id of wrong type",
			body:    `{"type":"INSERT","table":"bookings","record":{"id":{"x":1}}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent(strings.NewReader(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedEvent))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInsert, event.IsBookingInsert())
			if tt.wantInsert {
				require.NotNil(t, event.Record)
				assert.Equal(t, tt.wantID, event.Record.ID)
			} else {
				assert.Nil(t, event.Record)
			}
		})
	}
}

func TestDecodeEvent_NilReader(t *testing.T) {
	_, err := DecodeEvent(nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestResolveBusinessName(t *testing.T) {
	tests := []struct {
		name    string
		booking Booking
		want    string
	}{
		{name: "explicit column", booking: Booking{BusinessName: "Acme Salon", Business: &Business{Name: "Other"}}, want: "Acme Salon"},
		{name: "nested relation", booking: Booking{Business: &Business{Name: "Nested Co"}}, want: "Nested Co"},
		{name: "blank column falls through", booking: Booking{BusinessName: "  ", Business: &Business{Name: "Nested Co"}}, want: "Nested Co"},
		{name: "literal default", booking: Booking{}, want: "a client"},
		{name: "empty relation", booking: Booking{Business: &Business{}}, want: "a client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.booking.ResolveBusinessName("a client"))
		})
	}
}

func TestServiceDescription(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{name: "services array", record: `{"services":["Haircut","Shave"]}`, want: "Haircut, Shave"},
		{name: "services array wins over service", record: `{"services":["Audit"],"service":"Tax"}`, want: "Audit"},
		{name: "single service", record: `{"service":"Haircut"}`, want: "Haircut"},
		{name: "services as string is ignored", record: `{"services":"GST Filing"}`, want: DefaultService},
		{name: "services as string defers to service", record: `{"services":"GST Filing","service":"Tax"}`, want: "Tax"},
		{name: "services as object defers to service", record: `{"services":{"name":"x"},"service":"Tax"}`, want: "Tax"},
		{name: "empty services array", record: `{"services":[],"service":"Tax"}`, want: ""},
		{name: "null services", record: `{"services":null,"service":"Tax"}`, want: "Tax"},
		{name: "nothing", record: `{}`, want: DefaultService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"type":"INSERT","table":"bookings","record":` + tt.record + `}`
			event, err := DecodeEvent(strings.NewReader(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Record.ServiceDescription())
		})
	}
}

func TestFallbackNameWithJoinedServices(t *testing.T) {
	body := `{"type":"INSERT","table":"bookings","record":{"id":9,"services":["Haircut","Shave"],"businesses":{"name":"Relation Name"}}}`
	event, err := DecodeEvent(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "Relation Name", event.Record.ResolveBusinessName("a client"))
	assert.Equal(t, "Haircut, Shave", event.Record.ServiceDescription())
	assert.Equal(t, "9", event.Record.ID.String())
}
