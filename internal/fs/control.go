package fs

import (
	"context"
	"strings"
	"syscall"

	"bazil.org/fuse"
)

// Extended attributes. The command, report and phase attributes live on
// the mount root and form the control channel used by `sharebox --command`.
const (
	XattrCommand = "user.sharebox.command"
	XattrReport  = "user.sharebox.report"
	XattrPhase   = "user.sharebox.phase"
	XattrState   = "user.sharebox.state"
	XattrKey     = "user.sharebox.key"

	CommandSync = "sync"
)

// Setxattr implements the NodeSetxattrer interface. Writing "sync" to the
// command attribute of the root starts one sync cycle in the background
// and returns at once. A sync already in flight yields EBUSY. Callers wait
// for the phase attribute to read idle and then read the report.
func (d *Dir) Setxattr(ctx context.Context, req *fuse.SetxattrRequest) error {
	if !d.path.IsRoot() || req.Name != XattrCommand {
		return syscall.ENOTSUP
	}

	command := strings.TrimSpace(strings.TrimRight(string(req.Xattr), "\x00"))
	dirLogger.Info("Control command %q", command)

	switch command {
	case CommandSync:
		if err := d.fs.sched.Start(ctx); err != nil {
			return ToFuseError(NewFSError(OpSetxattr, d.path.String(), err))
		}
		return nil
	default:
		return ToFuseError(NewFSError(OpSetxattr, d.path.String(), syscall.EINVAL))
	}
}

// Getxattr implements the NodeGetxattrer interface.
func (d *Dir) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	if !d.path.IsRoot() {
		return fuse.ErrNoXattr
	}

	switch req.Name {
	case XattrReport:
		report := d.fs.sched.LastReport()
		if report == nil {
			resp.Xattr = []byte("no sync has run yet\n")
			return nil
		}
		resp.Xattr = []byte(report.String())
	case XattrPhase:
		resp.Xattr = []byte(d.fs.sched.Phase().String())
	default:
		return fuse.ErrNoXattr
	}
	return nil
}

// Listxattr implements the NodeListxattrer interface.
func (d *Dir) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	if d.path.IsRoot() {
		resp.Append(XattrReport, XattrPhase)
	}
	return nil
}
