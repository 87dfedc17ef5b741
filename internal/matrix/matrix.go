// Package matrix defines the set of targets the library is compiled for.
package matrix

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
)

var (
	// ErrEmptyMatrix is returned when no target is configured.
	ErrEmptyMatrix = errors.New("target matrix is empty")
	// ErrNoReference is returned when no target is designated as reference.
	ErrNoReference = errors.New("no reference target designated")
)

// known maps rustc target triples to their OS/architecture.
var known = map[string]domain.Target{
	"x86_64-apple-darwin":   {OS: domain.OSMacOS, Arch: domain.ArchX86_64, Triple: "x86_64-apple-darwin"},
	"aarch64-apple-darwin":  {OS: domain.OSMacOS, Arch: domain.ArchARM64, Triple: "aarch64-apple-darwin"},
	"aarch64-apple-ios":     {OS: domain.OSIOS, Arch: domain.ArchARM64, Triple: "aarch64-apple-ios"},
	"x86_64-apple-ios":      {OS: domain.OSIOSSimulator, Arch: domain.ArchX86_64, Triple: "x86_64-apple-ios"},
	"aarch64-apple-ios-sim": {OS: domain.OSIOSSimulator, Arch: domain.ArchARM64, Triple: "aarch64-apple-ios-sim"},
}

// Lookup resolves a triple to a Target.
func Lookup(triple string) (domain.Target, bool) {
	t, ok := known[strings.TrimSpace(triple)]
	return t, ok
}

// KnownTriples returns every triple Lookup understands, sorted.
func KnownTriples() []string {
	out := make([]string, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Matrix is an ordered set of targets with exactly one reference target.
// The reference target is the one whose dynamic library is fed to the
// binding generator.
type Matrix struct {
	targets   []domain.Target
	reference string
}

// New creates a matrix. reference is the triple of the reference target.
func New(targets []domain.Target, reference string) *Matrix {
	cp := make([]domain.Target, len(targets))
	copy(cp, targets)
	return &Matrix{targets: cp, reference: reference}
}

// Default returns the Apple matrix: two macOS architectures, one iOS device
// architecture (the reference) and two iOS simulator architectures.
func Default() *Matrix {
	m, _ := FromTriples([]string{
		"x86_64-apple-darwin",
		"aarch64-apple-darwin",
		"aarch64-apple-ios",
		"x86_64-apple-ios",
		"aarch64-apple-ios-sim",
	}, "aarch64-apple-ios")
	return m
}

// FromTriples builds a matrix from known triples.
func FromTriples(triples []string, reference string) (*Matrix, error) {
	targets := make([]domain.Target, 0, len(triples))
	for _, triple := range triples {
		triple = strings.TrimSpace(triple)
		if triple == "" {
			continue
		}
		t, ok := Lookup(triple)
		if !ok {
			return nil, invalid(fmt.Errorf("unknown target triple %q (known: %s)", triple, strings.Join(KnownTriples(), ", ")))
		}
		targets = append(targets, t)
	}
	return New(targets, strings.TrimSpace(reference)), nil
}

// ParseList splits a comma separated --targets value.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Targets returns the targets in matrix order.
func (m *Matrix) Targets() []domain.Target {
	cp := make([]domain.Target, len(m.targets))
	copy(cp, m.targets)
	return cp
}

// Len returns the number of targets.
func (m *Matrix) Len() int { return len(m.targets) }

// Reference returns the reference target.
func (m *Matrix) Reference() (domain.Target, error) {
	if m.reference == "" {
		return domain.Target{}, invalid(ErrNoReference)
	}
	for _, t := range m.targets {
		if t.Triple == m.reference {
			return t, nil
		}
	}
	return domain.Target{}, invalid(fmt.Errorf("reference target %q is not in the matrix", m.reference))
}

// IsReference reports whether t is the reference target.
func (m *Matrix) IsReference(t domain.Target) bool {
	return t.Triple == m.reference
}

// Validate checks the matrix is non-empty, has no duplicates and has
// exactly one reference target that is a member.
func (m *Matrix) Validate() error {
	if m == nil || len(m.targets) == 0 {
		return invalid(ErrEmptyMatrix)
	}
	seen := make(map[string]bool, len(m.targets))
	ids := make(map[string]bool, len(m.targets))
	for _, t := range m.targets {
		if err := t.Validate(); err != nil {
			return invalid(err)
		}
		if seen[t.Triple] {
			return invalid(fmt.Errorf("duplicate target %q", t.Triple))
		}
		if ids[t.ID()] {
			return invalid(fmt.Errorf("two targets share os/arch %s", t.ID()))
		}
		seen[t.Triple] = true
		ids[t.ID()] = true
	}
	_, err := m.Reference()
	return err
}

// Platforms returns the distinct platforms in order of first appearance.
func (m *Matrix) Platforms() []domain.Platform {
	var out []domain.Platform
	seen := map[domain.Platform]bool{}
	for _, t := range m.targets {
		p := t.Platform()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Family is the set of targets that share a platform.
type Family struct {
	Platform domain.Platform
	Targets  []domain.Target
}

// NeedsMerge reports whether the family spans more than one architecture.
func (f Family) NeedsMerge() bool { return len(f.Targets) > 1 }

// Families groups targets by platform, preserving matrix order.
func (m *Matrix) Families() []Family {
	idx := map[domain.Platform]int{}
	var out []Family
	for _, t := range m.targets {
		p := t.Platform()
		i, ok := idx[p]
		if !ok {
			i = len(out)
			idx[p] = i
			out = append(out, Family{Platform: p})
		}
		out[i].Targets = append(out[i].Targets, t)
	}
	return out
}

func invalid(err error) error {
	if errors.Is(err, domain.ErrInvalidMatrix) {
		return err
	}
	return domain.NewStageError(domain.StageMatrix, err)
}
