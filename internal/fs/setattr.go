package fs

import (
	"context"

	"sharebox/internal/state"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

// setattr applies the changed fields of req to vp. Content changes go
// through the engine; timestamps are set on the backing object itself, so
// touching a placeholder does not fetch it.
func (s *ShareFS) setattr(ctx context.Context, vp state.VirtualPath, req *fuse.SetattrRequest) error {
	fileLogger.Debug("Setattr on %q: %v", vp.String(), req.Valid)

	if req.Valid.Size() {
		if err := s.engine.Truncate(ctx, vp, int64(req.Size)); err != nil {
			return ToFuseError(NewFSError(OpSetattr, vp.String(), err))
		}
	}
	if req.Valid.Mode() {
		if err := s.engine.Chmod(ctx, vp, req.Mode); err != nil {
			return ToFuseError(NewFSError(OpSetattr, vp.String(), err))
		}
	}
	if req.Valid.Uid() || req.Valid.Gid() {
		uid, gid := -1, -1
		if req.Valid.Uid() {
			uid = int(req.Uid)
		}
		if req.Valid.Gid() {
			gid = int(req.Gid)
		}
		if err := s.engine.Chown(ctx, vp, uid, gid); err != nil {
			return ToFuseError(NewFSError(OpSetattr, vp.String(), err))
		}
	}
	if req.Valid.Atime() || req.Valid.Mtime() || req.Valid.AtimeNow() || req.Valid.MtimeNow() {
		if err := setTimes(s.resolver().Backing(vp), req); err != nil {
			return ToFuseError(NewFSError(OpSetattr, vp.String(), err))
		}
	}
	return nil
}

func timespec(set, now bool, t int64) unix.Timespec {
	switch {
	case now:
		return unix.Timespec{Nsec: unix.UTIME_NOW}
	case set:
		return unix.NsecToTimespec(t)
	default:
		return unix.Timespec{Nsec: unix.UTIME_OMIT}
	}
}

func setTimes(backing string, req *fuse.SetattrRequest) error {
	ts := []unix.Timespec{
		timespec(req.Valid.Atime(), req.Valid.AtimeNow(), req.Atime.UnixNano()),
		timespec(req.Valid.Mtime(), req.Valid.MtimeNow(), req.Mtime.UnixNano()),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, backing, ts, unix.AT_SYMLINK_NOFOLLOW)
}
