package history

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "history"), zap.NewNop())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func TestFileStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("  ", zap.NewNop())
	assert.Error(t, err)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := newFileStore(t)
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	sizes := []int{0, 1, 257}
	for _, n := range sizes {
		t.Run(fmt.Sprintf("%d urls", n), func(t *testing.T) {
			t.Parallel()

			store := newFileStore(t)
			set := NewSet()
			for i := 0; i < n; i++ {
				set.Add(fmt.Sprintf("https://i.pximg.net/img-original/%d_p0.jpg", i))
			}
			// Unicode URLs survive the line format.
			if n > 0 {
				set.Add("https://i.pximg.net/東方/123_p0.jpg")
			}

			require.NoError(t, store.Save(context.Background(), set))

			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, set.Len(), loaded.Len())
			assert.ElementsMatch(t, set.URLs(), loaded.URLs())
		})
	}
}

func TestFileStoreSaveReplacesPrevious(t *testing.T) {
	t.Parallel()

	store := newFileStore(t)
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"old"})))
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"new-1", "new-2"})))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded.Contains("old"))
	assert.Equal(t, 2, loaded.Len())
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "history")
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"a"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history", entries[0].Name())
}

func TestFileStoreSaveCreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "nested", "history")
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"a"})))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.Contains("a"))
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history")
	require.NoError(t, os.WriteFile(path, []byte("not gzip at all"), 0o600))

	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreCrashMidWriteKeepsOldHistory(t *testing.T) {
	t.Parallel()

	store := newFileStore(t)
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"survivor"})))

	// A crash between temp write and rename leaves a stray .tmp behind;
	// the destination must still hold the previous snapshot.
	require.NoError(t, store.writeTemp(store.path+".tmp", NewSetFrom([]string{"half-written"})))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.Contains("survivor"))
	assert.False(t, loaded.Contains("half-written"))
}

func TestFileStoreFileIsGzip(t *testing.T) {
	t.Parallel()

	store := newFileStore(t)
	require.NoError(t, store.Save(context.Background(), NewSetFrom([]string{"a"})))

	f, err := os.Open(store.path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	assert.NoError(t, zr.Close())
}
