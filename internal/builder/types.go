package builder

import (
	"fmt"
	"os"

	"github.com/dosanma1/xcforge/internal/domain"
)

// artifactFile checks that path is a non-empty regular file and wraps it as
// a BuildArtifact.
func artifactFile(path string, kind domain.ArtifactKind, opts *BuildOptions) (domain.BuildArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.BuildArtifact{}, fmt.Errorf("expected %s not produced: %w", kind, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return domain.BuildArtifact{}, fmt.Errorf("%s %s is empty or not a regular file", kind, path)
	}
	return domain.BuildArtifact{
		Target:  opts.Target,
		Kind:    kind,
		Path:    path,
		Profile: opts.Profile,
	}, nil
}

// removeStale deletes artifacts left by a previous run so a failed build can
// never be mistaken for a fresh one.
func removeStale(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale artifact %s: %w", p, err)
		}
	}
	return nil
}
