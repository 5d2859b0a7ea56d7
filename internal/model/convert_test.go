package model

import (
	"testing"
	"time"
)

func typedProp(api, col APIType) *Property {
	return &Property{Name: "p", ColumnName: "p", APIType: api, ColumnType: col}
}

func TestToDBConversions(t *testing.T) {
	tests := []struct {
		name string
		prop *Property
		in   any
		want any
	}{
		{"string passthrough", typedProp(TypeString, TypeString), "abc", "abc"},
		{"integer from string", typedProp(TypeInteger, TypeInteger), "42", int64(42)},
		{"integer from float", typedProp(TypeInteger, TypeInteger), 42.0, int64(42)},
		{"number from string", typedProp(TypeNumber, TypeNumber), "1200", float64(1200)},
		{"boolean true any case", typedProp(TypeBoolean, TypeBoolean), "TRUE", true},
		{"boolean false", typedProp(TypeBoolean, TypeBoolean), "false", false},
		{"date normalized", typedProp(TypeDate, TypeDate), "2025-01-15", "2025-01-15"},
		{"date-time normalized", typedProp(TypeDateTime, TypeDateTime), "2025-01-15T10:00:00", "2025-01-15T10:00:00"},
		{"time normalized", typedProp(TypeTime, TypeTime), "10:00:00", "10:00:00"},
		{"nil passthrough", typedProp(TypeInteger, TypeInteger), nil, nil},
		{"cross-type string column", typedProp(TypeNumber, TypeString), 1.5, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.ToDB(tt.in)
			if err != nil {
				t.Fatalf("ToDB(%v): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToDB(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToDBErrors(t *testing.T) {
	tests := []struct {
		prop *Property
		in   any
	}{
		{typedProp(TypeInteger, TypeInteger), "abc"},
		{typedProp(TypeBoolean, TypeBoolean), "maybe"},
		{typedProp(TypeDate, TypeDate), "15/01/2025"},
		{typedProp(TypeDateTime, TypeDateTime), "not-a-time"},
	}
	for _, tt := range tests {
		if _, err := tt.prop.ToDB(tt.in); err == nil {
			t.Errorf("ToDB(%v) on %s column: expected error", tt.in, tt.prop.ColumnType)
		}
	}
}

func TestToAPIConversions(t *testing.T) {
	stamp := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		prop *Property
		in   any
		want any
	}{
		{"integer from driver int64", typedProp(TypeInteger, TypeInteger), int64(5), int64(5)},
		{"integer from mysql bytes", typedProp(TypeInteger, TypeInteger), []byte("5"), int64(5)},
		{"boolean from tinyint", typedProp(TypeBoolean, TypeBoolean), int64(1), true},
		{"date from time.Time", typedProp(TypeDate, TypeDate), stamp, "2025-01-15"},
		{"date-time from time.Time", typedProp(TypeDateTime, TypeDateTime), stamp, "2025-01-15T10:00:00"},
		{"date-time from string", typedProp(TypeDateTime, TypeDateTime), "2025-01-15 10:00:00", "2025-01-15T10:00:00"},
		{"nil passthrough", typedProp(TypeString, TypeString), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.ToAPI(tt.in)
			if err != nil {
				t.Fatalf("ToAPI(%v): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToAPI(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

// Round-trips hold for every valid string under each type, modulo
// normalization.
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		prop *Property
		in   string
		want any
	}{
		{typedProp(TypeInteger, TypeInteger), "42", int64(42)},
		{typedProp(TypeNumber, TypeNumber), "3.14", float64(3.14)},
		{typedProp(TypeBoolean, TypeBoolean), "true", true},
		{typedProp(TypeDate, TypeDate), "2025-01-15", "2025-01-15"},
		{typedProp(TypeDateTime, TypeDateTime), "2025-01-15T10:00:00", "2025-01-15T10:00:00"},
		{typedProp(TypeTime, TypeTime), "10:30:00", "10:30:00"},
	}
	for _, tt := range tests {
		db, err := tt.prop.ToDB(tt.in)
		if err != nil {
			t.Fatalf("ToDB(%q): %v", tt.in, err)
		}
		api, err := tt.prop.ToAPI(db)
		if err != nil {
			t.Fatalf("ToAPI(%v): %v", db, err)
		}
		if api != tt.want {
			t.Errorf("round trip of %q = %#v, want %#v", tt.in, api, tt.want)
		}
	}
}
