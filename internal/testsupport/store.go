package testsupport

import (
	"context"
	"testing"

	"voxview/internal/catalog"
	"voxview/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutVolume inserts a record for tests using the provided store.
func PutVolume(t testing.TB, store *catalog.Store, rec catalog.VolumeRecord) {
	t.Helper()

	if err := store.PutVolume(context.Background(), rec); err != nil {
		t.Fatalf("store.PutVolume: %v", err)
	}
}
