package fs

import (
	"context"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

// Statfs reports the backing directory's filesystem.
func (s *ShareFS) Statfs(_ context.Context, _ *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	var st unix.Statfs_t
	if err := unix.Statfs(s.cfg.GitDir, &st); err != nil {
		vfsLogger.Error("Statfs on %q failed: %v", s.cfg.GitDir, err)
		return ToFuseError(err)
	}
	resp.Blocks = st.Blocks
	resp.Bfree = st.Bfree
	resp.Bavail = st.Bavail
	resp.Files = st.Files
	resp.Ffree = st.Ffree
	resp.Bsize = safeInt64ToUint32(int64(st.Bsize))
	resp.Namelen = safeInt64ToUint32(int64(st.Namelen))
	resp.Frsize = safeInt64ToUint32(int64(st.Frsize))
	return nil
}
