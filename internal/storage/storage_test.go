// ABOUTME: Tests for filesystem bucket provisioning
// ABOUTME: Covers creation, idempotence and rejected names

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSProvisionerMake(t *testing.T) {
	root := t.TempDir()
	p := NewFSProvisioner(root)

	require.NoError(t, p.Make(context.Background(), "ws-1"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ws-1", "blob"), []byte("x"), 0644))
	require.NoError(t, p.Make(context.Background(), "ws-1"))

	data, err := os.ReadFile(filepath.Join(root, "ws-1", "blob"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestFSProvisionerRejectsTraversal(t *testing.T) {
	p := NewFSProvisioner(t.TempDir())
	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.ErrorIs(t, p.Make(context.Background(), name), ErrInvalidBucket, name)
	}
}

func TestFSProvisionerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewFSProvisioner(t.TempDir()).Make(ctx, "ws-1"), context.Canceled)
}
