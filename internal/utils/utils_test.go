package utils

import (
	"testing"
)

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []string{"n"},
		"properties": map[string]any{
			"n": NullableString(`^[0-9]+$`),
			"c": UnitInterval(),
		},
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"n":"123","c":0.5}`)); err != nil {
		t.Fatalf("valid doc rejected: %v", err)
	}
	if err := ValidateJSONAgainstSchema(schema, []byte(`{"n":null}`)); err != nil {
		t.Fatalf("null leaf rejected: %v", err)
	}
	for _, bad := range []string{`{"n":"12a"}`, `{"c":0.5}`, `{"n":"1","c":1.5}`, `not json`} {
		if err := ValidateJSONAgainstSchema(schema, []byte(bad)); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestStructRoundTrip(t *testing.T) {
	type payload struct {
		ID    string   `json:"id"`
		Score float64  `json:"score"`
		Tags  []string `json:"tags"`
	}
	in := payload{ID: "a", Score: 0.25, Tags: []string{"x"}}
	s, err := ToStruct(in)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	if got := s.Fields["id"].GetStringValue(); got != "a" {
		t.Fatalf("id = %q", got)
	}
	var out payload
	if err := FromStruct(s, &out); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}
	if out.ID != in.ID || out.Score != in.Score || len(out.Tags) != 1 {
		t.Fatalf("round trip = %+v", out)
	}
	var empty payload
	if err := FromStruct(nil, &empty); err != nil {
		t.Fatalf("FromStruct(nil): %v", err)
	}
}

func TestRoundAndClamp(t *testing.T) {
	if got := Round(0.12345, 3); got != 0.123 {
		t.Errorf("Round = %v", got)
	}
	if got := Round(2.0/3.0, 2); got != 0.67 {
		t.Errorf("Round = %v", got)
	}
	if Clamp01(-1) != 0 || Clamp01(2) != 1 || Clamp01(0.4) != 0.4 {
		t.Error("Clamp01 mismatch")
	}
}
