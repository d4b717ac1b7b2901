package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/earshot/earshot/pkg/storage"
)

// Sweep deletes archived audio objects whose uploadedAt metadata is
// older than maxAge. Objects without parseable uploadedAt metadata are
// skipped. It returns the number of objects deleted.
func Sweep(ctx context.Context, store storage.ObjectStore, maxAge time.Duration) (int, error) {
	infos, err := store.List(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("archive: sweep list: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, info := range infos {
		raw, ok := info.Metadata["uploadedat"]
		if !ok {
			continue
		}
		uploadedAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		if uploadedAt.After(cutoff) {
			continue
		}
		if err := store.Delete(ctx, info.Key); err != nil {
			return deleted, fmt.Errorf("archive: sweep delete %s: %w", info.Key, err)
		}
		deleted++
	}
	return deleted, nil
}
