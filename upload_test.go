package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluebeam-community/studio-go/internal/journal"
	"github.com/bluebeam-community/studio-go/internal/studio"
)

func openTestJournal(t *testing.T) *journal.Store {
	t.Helper()

	jrnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), discardLogger())
	require.NoError(t, err)

	t.Cleanup(func() { jrnl.Close() })

	return jrnl
}

// writeTestFile creates a file and returns its path, stat info, and SHA-256.
func writeTestFile(t *testing.T, content string) (string, os.FileInfo, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)

	hash, err := hashFileDisk(path)
	require.NoError(t, err)

	return path, info, hash
}

func TestHashFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	hash, err := hashFileDisk(path)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hash)
}

func TestHashFileDisk_MissingFile(t *testing.T) {
	_, err := hashFileDisk(filepath.Join(t.TempDir(), "nonexistent.pdf"))
	assert.Error(t, err)
}

func TestJournaledUnchanged(t *testing.T) {
	ctx := context.Background()
	jrnl := openTestJournal(t)
	logger := discardLogger()

	path, info, hash := writeTestFile(t, "document body")

	t.Run("no record", func(t *testing.T) {
		assert.False(t, journaledUnchanged(ctx, jrnl, logger, "s-none", path, info, hash))
	})

	t.Run("size and mtime match", func(t *testing.T) {
		// The stat fast path matches without consulting the hash.
		rec := &journal.Record{
			SessionID:  "s-stat",
			Path:       path,
			Size:       info.Size(),
			ModTime:    info.ModTime().UnixNano(),
			SHA256:     "some-other-hash",
			FileID:     1,
			UploadedAt: journal.NowNano(),
		}
		require.NoError(t, jrnl.Upsert(ctx, rec))

		assert.True(t, journaledUnchanged(ctx, jrnl, logger, "s-stat", path, info, hash))
	})

	t.Run("touched file with identical content", func(t *testing.T) {
		rec := &journal.Record{
			SessionID:  "s-hash",
			Path:       path,
			Size:       info.Size() + 1,
			ModTime:    12345,
			SHA256:     hash,
			FileID:     2,
			UploadedAt: journal.NowNano(),
		}
		require.NoError(t, jrnl.Upsert(ctx, rec))

		assert.True(t, journaledUnchanged(ctx, jrnl, logger, "s-hash", path, info, hash))
	})

	t.Run("content changed", func(t *testing.T) {
		rec := &journal.Record{
			SessionID:  "s-changed",
			Path:       path,
			Size:       info.Size() + 1,
			ModTime:    12345,
			SHA256:     "stale-hash",
			FileID:     3,
			UploadedAt: journal.NowNano(),
		}
		require.NoError(t, jrnl.Upsert(ctx, rec))

		assert.False(t, journaledUnchanged(ctx, jrnl, logger, "s-changed", path, info, hash))
	})

	t.Run("record without hash", func(t *testing.T) {
		// Old rows may predate hashing; without a stat match they cannot
		// prove the content is unchanged.
		rec := &journal.Record{
			SessionID:  "s-nohash",
			Path:       path,
			Size:       info.Size() + 1,
			ModTime:    12345,
			FileID:     4,
			UploadedAt: journal.NowNano(),
		}
		require.NoError(t, jrnl.Upsert(ctx, rec))

		assert.False(t, journaledUnchanged(ctx, jrnl, logger, "s-nohash", path, info, hash))
	})
}

func TestRecordUpload(t *testing.T) {
	ctx := context.Background()
	jrnl := openTestJournal(t)

	path, info, hash := writeTestFile(t, "uploaded body")
	up := &studio.FileUpload{FileID: 42, Name: "doc.pdf"}

	recordUpload(ctx, jrnl, discardLogger(), "s1", path, info, hash, up)

	rec, err := jrnl.Get(ctx, "s1", path)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, info.Size(), rec.Size)
	assert.Equal(t, info.ModTime().UnixNano(), rec.ModTime)
	assert.Equal(t, hash, rec.SHA256)
	assert.Equal(t, int64(42), rec.FileID)
	assert.Positive(t, rec.UploadedAt)
}

func TestUploadTally_ConcurrentCounts(t *testing.T) {
	tally := &uploadTally{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()
			tally.addUploaded()
		}()

		go func() {
			defer wg.Done()
			tally.addSkipped()
		}()

		go func() {
			defer wg.Done()
			tally.addFailed("file.pdf")
		}()
	}

	wg.Wait()

	assert.Equal(t, 20, tally.uploaded)
	assert.Equal(t, 20, tally.skipped)
	assert.Len(t, tally.failed, 20)
}
