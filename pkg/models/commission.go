package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	FieldCommissionID    = "Id_Comision"
	FieldActivityID      = "Id_Actividad"
	FieldCommissionYear  = "AñoComision"
	FieldStartDate       = "FechaInicio"
	FieldEndDate         = "FechaFin"
	FieldCommissionState = "EstadoComision"
)

// DateLayout is the canonical stored format of commission dates.
const DateLayout = "2006-01-02"

// CommissionState is derived from the commission dates and today's date.
type CommissionState string

const (
	CommissionPending  CommissionState = "PENDIENTE"
	CommissionRunning  CommissionState = "CURSANDO"
	CommissionFinished CommissionState = "FINALIZADA"
)

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// NewDate returns the calendar date of t in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a DateLayout string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DeriveCommissionState compares today against the start and end dates.
// The start and end days themselves count as running.
func DeriveCommissionState(start, end Date, today time.Time) CommissionState {
	day := NewDate(today)
	switch {
	case day.Before(start.Time):
		return CommissionPending
	case day.After(end.Time):
		return CommissionFinished
	default:
		return CommissionRunning
	}
}

// Commission is one edition of an activity. It owns a campus and a dictation
// step record stored under the same key.
type Commission struct {
	ID         string          `json:"id"`
	ActivityID string          `json:"activity_id"`
	Year       int             `json:"year"`
	StartDate  Date            `json:"start_date"`
	EndDate    Date            `json:"end_date"`
	State      CommissionState `json:"state"`
}

// StateOn returns the commission state as of today.
func (c Commission) StateOn(today time.Time) CommissionState {
	return DeriveCommissionState(c.StartDate, c.EndDate, today)
}

// ToDocument returns the stored fields of the commission.
func (c Commission) ToDocument() map[string]any {
	return map[string]any{
		FieldCommissionID:    c.ID,
		FieldActivityID:      c.ActivityID,
		FieldCommissionYear:  c.Year,
		FieldStartDate:       c.StartDate.String(),
		FieldEndDate:         c.EndDate.String(),
		FieldCommissionState: string(c.State),
	}
}

// CommissionFromDocument decodes a stored commission.
func CommissionFromDocument(id string, doc map[string]any) (Commission, error) {
	c := Commission{
		ID:         id,
		ActivityID: stringField(doc, FieldActivityID),
		State:      CommissionState(stringField(doc, FieldCommissionState)),
	}

	year, err := intField(doc[FieldCommissionYear])
	if err != nil {
		return Commission{}, fmt.Errorf("commission %s: %s: %w", id, FieldCommissionYear, err)
	}
	c.Year = year

	if c.StartDate, err = ParseDate(stringField(doc, FieldStartDate)); err != nil {
		return Commission{}, fmt.Errorf("commission %s: %s: %w", id, FieldStartDate, err)
	}
	if c.EndDate, err = ParseDate(stringField(doc, FieldEndDate)); err != nil {
		return Commission{}, fmt.Errorf("commission %s: %s: %w", id, FieldEndDate, err)
	}
	return c, nil
}

// intField accepts the numeric shapes produced by the different stores.
func intField(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
