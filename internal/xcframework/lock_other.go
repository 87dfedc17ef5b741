//go:build !unix

package xcframework

import (
	"context"
	"errors"
	"os"
	"time"
)

const lockPoll = 100 * time.Millisecond

type fileLock struct {
	path string
}

// acquireLock creates path exclusively, waiting until ctx is done.
func acquireLock(ctx context.Context, path string) (*fileLock, error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

func (l *fileLock) release() {
	_ = os.Remove(l.path)
}
