//go:build !linux

package fs

import (
	"context"

	"bazil.org/fuse"
)

// Statfs reports nothing where statfs(2) has no portable shape.
func (s *ShareFS) Statfs(_ context.Context, _ *fuse.StatfsRequest, _ *fuse.StatfsResponse) error {
	return nil
}
