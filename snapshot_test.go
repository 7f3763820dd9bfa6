package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotDestPath(t *testing.T) {
	t.Run("default name from session and file", func(t *testing.T) {
		got := snapshotDestPath([]string{"sess-1", "42"}, "sess-1", 42)
		assert.Equal(t, "sess-1-42-snapshot.pdf", got)
	})

	t.Run("explicit destination wins", func(t *testing.T) {
		got := snapshotDestPath([]string{"sess-1", "42", "merged.pdf"}, "sess-1", 42)
		assert.Equal(t, "merged.pdf", got)
	})
}
