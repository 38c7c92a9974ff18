// ABOUTME: Workspace bucket provisioning, one idempotent call per fresh workspace
// ABOUTME: FSProvisioner keeps each bucket as a directory under a root

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// ErrInvalidBucket is returned for workspace names that cannot name a bucket
var ErrInvalidBucket = errors.New("invalid bucket name")

var bucketPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Provisioner ensures the blob bucket of a workspace exists
type Provisioner interface {
	Make(ctx context.Context, workspace string) error
}

// FSProvisioner provisions buckets as directories
type FSProvisioner struct {
	root   string
	logger *slog.Logger
}

// NewFSProvisioner returns a provisioner rooted at root
func NewFSProvisioner(root string) *FSProvisioner {
	return &FSProvisioner{root: root, logger: slog.Default().With("component", "storage")}
}

// BucketPath returns the directory backing a workspace bucket
func (p *FSProvisioner) BucketPath(workspace string) (string, error) {
	if !bucketPattern.MatchString(workspace) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBucket, workspace)
	}
	return filepath.Join(p.root, workspace), nil
}

// Make creates the bucket directory if it is missing
func (p *FSProvisioner) Make(ctx context.Context, workspace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := p.BucketPath(workspace)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating bucket %s: %w", workspace, err)
	}
	p.logger.Info("bucket created", "workspace", workspace, "path", dir)
	return nil
}
