package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput is wrapped by every decode failure of client-supplied data.
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidNumber = errors.New("invalid number")
	ErrMissingField  = errors.New("missing field")
)

// Measurement is one PM2.5 sample at a grid point.
type Measurement struct {
	Lat  float64
	Lon  float64
	PM25 float64
}

// Entry is a stored measurement annotated with its id, as listed by GET /data.
type Entry struct {
	ID   int     `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	PM25 float64 `json:"GWRPM25"`
}

// Datum is the body of GET /data/{id}.
type Datum struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	PM25 float64 `json:"GWRPM25"`
}

func NewEntry(id int, m Measurement) Entry {
	return Entry{ID: id, Lat: m.Lat, Lon: m.Lon, PM25: m.PM25}
}

func NewDatum(m Measurement) Datum {
	return Datum{Lat: m.Lat, Lon: m.Lon, PM25: m.PM25}
}

// Stats aggregates the pm25 column. Average, Min and Max are nil when Count is 0.
type Stats struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// Number is a float64 that decodes from a JSON number or a numeric JSON string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrInvalidNumber, s)
		}
		s = strings.TrimSpace(unquoted)
	}
	f, err := ParseFloat(s)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ParseFloat parses a finite decimal float. Used for JSON string values and
// path segments alike. Hex literals ("0x1p-2") are rejected.
func ParseFloat(s string) (float64, error) {
	digits := strings.TrimLeft(s, "+-")
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, fmt.Errorf("%w: %w: %q", ErrInvalidInput, ErrInvalidNumber, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %q", ErrInvalidInput, ErrInvalidNumber, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %w: %q is not finite", ErrInvalidInput, ErrInvalidNumber, s)
	}
	return f, nil
}

// EntryRequest is the body of POST /data and PUT /data/{id}, and the payload
// of MQTT measurement messages.
type EntryRequest struct {
	Lat     *Number `json:"lat" validate:"required"`
	Lon     *Number `json:"lon" validate:"required"`
	GWRPM25 *Number `json:"gwrpm25" validate:"required"`
}

// Measurement converts a validated request. Call only after all fields are set.
func (r EntryRequest) Measurement() Measurement {
	return Measurement{
		Lat:  float64(*r.Lat),
		Lon:  float64(*r.Lon),
		PM25: float64(*r.GWRPM25),
	}
}
