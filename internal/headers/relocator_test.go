package headers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dosanma1/xcforge/internal/domain"
)

const generatedMap = `// This file was autogenerated.
module BitcoinDevKitFFI {
    header "BitcoinDevKitFFI.h"
    export *
}`

func generated(t *testing.T, moduleMap string) *domain.BindingOutput {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bindings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	out := &domain.BindingOutput{
		Dir:         dir,
		Header:      filepath.Join(dir, "BitcoinDevKitFFI.h"),
		ModuleMap:   filepath.Join(dir, "BitcoinDevKitFFI.modulemap"),
		SourceFiles: []string{filepath.Join(dir, "BitcoinDevKit.swift")},
	}
	files := map[string]string{out.Header: "#pragma once\n", out.ModuleMap: moduleMap, out.SourceFiles[0]: "import Foundation\n"}
	for p, c := range files {
		if err := os.WriteFile(p, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func TestRelocate(t *testing.T) {
	out := generated(t, generatedMap)
	root := t.TempDir()
	cfg := Config{HeadersDir: filepath.Join(root, "headers"), SourcesDir: filepath.Join(root, "Sources", "BitcoinDevKit")}

	set, err := NewRelocator(cfg).Relocate(context.Background(), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &domain.HeaderSet{
		Dir:       cfg.HeadersDir,
		Header:    filepath.Join(cfg.HeadersDir, "BitcoinDevKitFFI.h"),
		ModuleMap: filepath.Join(cfg.HeadersDir, "module.modulemap"),
	}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Fatalf("header set mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(set.ModuleMap)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != generatedMap+"\n\n" {
		t.Fatalf("unexpected module map %q", data)
	}
	for _, gone := range []string{out.Header, out.ModuleMap, out.SourceFiles[0]} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("%s was not moved", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.SourcesDir, "BitcoinDevKit.swift")); err != nil {
		t.Fatalf("source not relocated: %v", err)
	}
}

func TestRelocateMissingHeader(t *testing.T) {
	out := generated(t, generatedMap)
	if err := os.Remove(out.Header); err != nil {
		t.Fatal(err)
	}
	_, err := NewRelocator(Config{HeadersDir: filepath.Join(t.TempDir(), "headers")}).Relocate(context.Background(), out)
	if !errors.Is(err, domain.ErrRelocation) {
		t.Fatalf("expected relocation error, got %v", err)
	}
	if domain.ExitCode(err) != domain.ExitRelocation {
		t.Fatalf("unexpected exit code")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "strips directories and adds separator",
			in:   "module M {\n    header \"../include/M.h\"\n}\n\n\n",
			want: "module M {\n    header \"M.h\"\n}\n\n",
		},
		{
			name: "idempotent",
			in:   "module M {\n    header \"M.h\"\n}\n\n",
			want: "module M {\n    header \"M.h\"\n}\n\n",
		},
		{name: "no header", in: "module M {}\n", wantErr: true},
		{name: "wrong header", in: "module M { header \"Other.h\" }", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, "M.h")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
