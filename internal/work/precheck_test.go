package work

import (
	"errors"
	"testing"

	"fieldjudge/internal/verdict"
)

func TestPrecheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		unit     Unit
		resolved bool
	}{
		{
			name:     "empty value resolves to nodata",
			unit:     Unit{RecordID: "r1", Field: "salary", Value: "", Evidence: "some text"},
			resolved: true,
		},
		{
			name:     "whitespace value resolves to nodata",
			unit:     Unit{RecordID: "r1", Field: "salary", Value: "   ", Evidence: "some text"},
			resolved: true,
		},
		{
			name:     "empty evidence resolves to nodata",
			unit:     Unit{RecordID: "r1", Field: "title", Value: "Engineer", Evidence: ""},
			resolved: true,
		},
		{
			name:     "value and evidence present defers to judge",
			unit:     Unit{RecordID: "r1", Field: "title", Value: "Engineer", Evidence: "hiring an Engineer"},
			resolved: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Precheck(tt.unit)
			if !tt.resolved {
				if v != nil {
					t.Fatalf("expected precheck to defer, got %+v", v)
				}
				return
			}

			if v == nil {
				t.Fatalf("expected precheck to resolve the unit")
			}
			if v.Classification != verdict.NoData {
				t.Fatalf("expected nodata, got %s", v.Classification)
			}
			if v.Provenance != verdict.FromPrecheck {
				t.Fatalf("expected precheck provenance, got %s", v.Provenance)
			}
			if v.Explanation == "" {
				t.Fatalf("expected a fixed explanation")
			}
		})
	}
}

func TestUnitValidate(t *testing.T) {
	unit := Unit{RecordID: "r1", Field: "title"}
	if err := unit.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var inputErr *InputError

	missingID := Unit{Field: "title"}
	if err := missingID.Validate(); !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for missing record id, got %v", err)
	}

	missingField := Unit{RecordID: "r1"}
	if err := missingField.Validate(); !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for missing field name, got %v", err)
	}
}
