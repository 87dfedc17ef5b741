// Package headers moves the generated C header and module map into the
// layout the bundle assembler expects.
package headers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/pkg/xos"
)

// ModuleMapName is the file name module maps must have inside a bundle.
const ModuleMapName = "module.modulemap"

var headerDirective = regexp.MustCompile(`header\s+"([^"]+)"`)

// Config configures where relocated files end up. Both paths are absolute.
type Config struct {
	HeadersDir string
	// SourcesDir receives the generated language sources. Empty leaves them
	// in the generator output directory.
	SourcesDir string
}

// Relocator normalizes generated binding files.
type Relocator struct {
	cfg Config
}

// NewRelocator creates a relocator.
func NewRelocator(cfg Config) *Relocator {
	return &Relocator{cfg: cfg}
}

// Relocate moves the header and module map into HeadersDir, renames the
// module map to module.modulemap and normalizes its content.
func (r *Relocator) Relocate(ctx context.Context, out *domain.BindingOutput) (*domain.HeaderSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("no binding output"))
	}
	if !filepath.IsAbs(r.cfg.HeadersDir) {
		return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("headers dir must be absolute, got %q", r.cfg.HeadersDir))
	}
	for _, p := range []string{out.Header, out.ModuleMap} {
		if _, err := os.Stat(p); err != nil {
			return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("generated file missing: %w", err))
		}
	}

	raw, err := os.ReadFile(out.ModuleMap)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, err)
	}
	headerName := filepath.Base(out.Header)
	content, err := Normalize(string(raw), headerName)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, err)
	}

	if err := os.RemoveAll(r.cfg.HeadersDir); err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, err)
	}
	if err := os.MkdirAll(r.cfg.HeadersDir, 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, err)
	}

	set := &domain.HeaderSet{
		Dir:       r.cfg.HeadersDir,
		Header:    filepath.Join(r.cfg.HeadersDir, headerName),
		ModuleMap: filepath.Join(r.cfg.HeadersDir, ModuleMapName),
	}
	if err := xos.MoveFile(out.Header, set.Header); err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("move header: %w", err))
	}
	if err := xos.WriteFile(set.ModuleMap, []byte(content), 0o644); err != nil {
		return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("write module map: %w", err))
	}
	if err := os.Remove(out.ModuleMap); err != nil && !os.IsNotExist(err) {
		return nil, domain.NewStageError(domain.StageRelocate, err)
	}

	if r.cfg.SourcesDir != "" {
		for _, src := range out.SourceFiles {
			dst := filepath.Join(r.cfg.SourcesDir, filepath.Base(src))
			if err := xos.MoveFile(src, dst); err != nil {
				return nil, domain.NewStageError(domain.StageRelocate, fmt.Errorf("move source %s: %w", filepath.Base(src), err))
			}
		}
	}

	logger.L().Info("relocate.done", "stage", domain.StageRelocate, "dir", set.Dir, "sources", len(out.SourceFiles))
	return set, nil
}

// Normalize rewrites header directives to refer to header by its base name
// and terminates the module map with a blank line. The module map must
// reference header.
func Normalize(moduleMap, header string) (string, error) {
	matches := headerDirective.FindAllStringSubmatch(moduleMap, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("module map has no header directive")
	}
	found := false
	for _, m := range matches {
		if filepath.Base(m[1]) == header {
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("module map does not reference %s", header)
	}

	out := headerDirective.ReplaceAllStringFunc(moduleMap, func(s string) string {
		m := headerDirective.FindStringSubmatch(s)
		return fmt.Sprintf("header %q", filepath.Base(m[1]))
	})
	return strings.TrimRight(out, "\n \t") + "\n\n", nil
}
