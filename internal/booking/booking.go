package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultService describes a booking that names no service.
const DefaultService = "a service"

// Booking is a row of the bookings table as delivered in a webhook record.
// It is created elsewhere and only read here.
type Booking struct {
	ID           ID          `json:"id"`
	BusinessName string      `json:"business_name"`
	Business     *Business   `json:"businesses"`
	Service      string      `json:"service"`
	Services     ServiceList `json:"services"`
	Status       string      `json:"status"`
}

// Business is the nested business relation some booking payloads embed.
type Business struct {
	Name string `json:"name"`
}

// ResolveBusinessName prefers the explicit column, then the nested relation,
// then fallback.
func (b *Booking) ResolveBusinessName(fallback string) string {
	if name := strings.TrimSpace(b.BusinessName); name != "" {
		return name
	}
	if b.Business != nil {
		if name := strings.TrimSpace(b.Business.Name); name != "" {
			return name
		}
	}
	return fallback
}

// ServiceDescription joins the services list with ", ", falling back to the
// singular service column and then to DefaultService.
func (b *Booking) ServiceDescription() string {
	if b.Services != nil {
		return strings.Join(b.Services, ", ")
	}
	if service := strings.TrimSpace(b.Service); service != "" {
		return service
	}
	return DefaultService
}

// ID is a booking identifier. Payloads carry it as a string or a number; it is
// always held as a string.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("booking id must be a string or number: %w", err)
	}
	*id = ID(canonicalNumber(n))
	return nil
}

// canonicalNumber renders n the way it would print as a plain number, so
// 42, 42.0 and 4.2e1 all become "42".
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return n.String()
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (id ID) String() string {
	return string(id)
}

// ServiceList is the services column. Only an array counts as a list; a nil
// list means the column was absent or not an array, and the singular service
// column applies instead.
type ServiceList []string

// UnmarshalJSON accepts an array of strings. Any other non-array value is
// treated as absent.
func (s *ServiceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*s = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("services must be an array of strings: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*s = list
	return nil
}
