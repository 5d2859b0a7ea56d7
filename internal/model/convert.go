package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout strings for the ISO 8601 date/time shapes accepted and emitted on
// the API surface.
const (
	layoutDate     = "2006-01-02"
	layoutTime     = "15:04:05"
	layoutTimeFrac = "15:04:05.999999"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ToDB converts an API-side value into the value bound to the database
// driver for this property's column type. nil passes through unchanged.
// Date, date-time and time values are normalized ISO 8601 strings so that
// dialect-level conversion wrappers (TO_DATE and friends) receive the text
// form they expect.
func (p *Property) ToDB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch p.ColumnType {
	case TypeString:
		return toString(v), nil
	case TypeInteger:
		return toInt64(v)
	case TypeNumber:
		return toFloat64(v)
	case TypeBoolean:
		return toBool(v)
	case TypeDate:
		t, err := parseDate(toString(v))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format(layoutDate), nil
	case TypeDateTime:
		t, err := parseDateTime(toString(v))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format("2006-01-02T15:04:05.999999"), nil
	case TypeTime:
		t, err := parseClock(toString(v))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format(layoutTimeFrac), nil
	default:
		return v, nil
	}
}

// ToAPI converts a value scanned from a database row into its API-side
// representation for this property. nil passes through unchanged. Drivers
// hand back a mix of time.Time, []byte, string and numeric types depending
// on the engine; all of them normalize to the property's APIType.
func (p *Property) ToAPI(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch p.APIType {
	case TypeString:
		return toString(v), nil
	case TypeInteger:
		return toInt64(v)
	case TypeNumber:
		return toFloat64(v)
	case TypeBoolean:
		return toBool(v)
	case TypeDate:
		t, err := coerceTime(v, parseDate)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format(layoutDate), nil
	case TypeDateTime:
		t, err := coerceTime(v, parseDateTime)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format("2006-01-02T15:04:05.999999"), nil
	case TypeTime:
		t, err := coerceTime(v, parseClock)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		return t.Format(layoutTimeFrac), nil
	default:
		return v, nil
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case float32:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

// toBool accepts native bools, the text forms "true"/"false" in any case,
// and the 0/1 integers MySQL reports for BOOLEAN columns.
func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", t)
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", v)
	}
}

func coerceTime(v any, parse func(string) (time.Time, error)) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parse(t)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a date/time value", v)
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(layoutDate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}

func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{layoutTimeFrac, layoutTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
