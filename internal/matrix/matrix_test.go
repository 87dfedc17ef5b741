package matrix

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dosanma1/xcforge/internal/domain"
)

func TestDefaultMatrix(t *testing.T) {
	m := Default()
	if err := m.Validate(); err != nil {
		t.Fatalf("default matrix invalid: %v", err)
	}
	if m.Len() != 5 {
		t.Fatalf("expected 5 targets, got %d", m.Len())
	}

	ref, err := m.Reference()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Triple != "aarch64-apple-ios" {
		t.Fatalf("unexpected reference %s", ref.Triple)
	}

	want := []domain.Platform{"macos", "ios", "ios-simulator"}
	if diff := cmp.Diff(want, m.Platforms()); diff != "" {
		t.Fatalf("platforms mismatch (-want +got):\n%s", diff)
	}

	fams := m.Families()
	merges := 0
	for _, f := range fams {
		if f.NeedsMerge() {
			merges++
		}
	}
	if len(fams) != 3 || merges != 2 {
		t.Fatalf("expected 3 families with 2 merges, got %d families, %d merges", len(fams), merges)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		triples []string
		ref     string
		wantErr error
	}{
		{"empty", nil, "aarch64-apple-ios", ErrEmptyMatrix},
		{"no reference", []string{"aarch64-apple-ios"}, "", ErrNoReference},
		{"reference not member", []string{"aarch64-apple-darwin"}, "aarch64-apple-ios", nil},
		{"duplicate", []string{"aarch64-apple-ios", "aarch64-apple-ios"}, "aarch64-apple-ios", nil},
		{"single", []string{"aarch64-apple-ios"}, "aarch64-apple-ios", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromTriples(tt.triples, tt.ref)
			if err != nil {
				t.Fatalf("FromTriples: %v", err)
			}
			err = m.Validate()
			if tt.name == "single" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidMatrix) {
				t.Fatalf("expected ErrInvalidMatrix, got %v", err)
			}
			if domain.ExitCode(err) != domain.ExitConfig {
				t.Fatalf("unexpected exit code %d", domain.ExitCode(err))
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromTriplesUnknown(t *testing.T) {
	_, err := FromTriples([]string{"riscv64gc-unknown-linux-gnu"}, "")
	if !domain.IsStage(err, domain.StageMatrix) {
		t.Fatalf("expected matrix error, got %v", err)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" aarch64-apple-ios, ,x86_64-apple-ios ")
	want := []string{"aarch64-apple-ios", "x86_64-apple-ios"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseList mismatch (-want +got):\n%s", diff)
	}
}

func TestFamiliesPreserveOrder(t *testing.T) {
	m, err := FromTriples([]string{"aarch64-apple-ios-sim", "aarch64-apple-ios", "x86_64-apple-ios"}, "aarch64-apple-ios")
	if err != nil {
		t.Fatal(err)
	}
	fams := m.Families()
	if len(fams) != 2 {
		t.Fatalf("expected 2 families, got %d", len(fams))
	}
	if fams[0].Platform != "ios-simulator" || len(fams[0].Targets) != 2 {
		t.Fatalf("unexpected first family %+v", fams[0])
	}
	if fams[0].Targets[0].Triple != "aarch64-apple-ios-sim" {
		t.Fatalf("family order not preserved: %+v", fams[0].Targets)
	}
}
