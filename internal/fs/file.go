package fs

import (
	"context"
	"io"
	"os"
	"sync"
	"syscall"

	"sharebox/internal/logging"
	"sharebox/internal/state"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File represents a file or user symlink in the overlay.
type File struct {
	fs   *ShareFS
	path state.VirtualPath
}

// Attr implements the Node interface, returning the file's attributes.
// Placeholders report size 0 (or their key size when configured) and are
// never fetched here.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	fileLogger.Trace("Getting attributes for file: %q", f.path.String())

	_, snap, err := f.fs.resolver().Stat(f.path)
	if err != nil {
		return ToFuseError(NewFSError(OpGetattr, f.path.String(), err))
	}
	f.fs.fillAttr(snap, a)

	fileLogger.Trace("File attributes: state=%v, mode=%v, size=%d", snap.State, a.Mode, a.Size)
	return nil
}

// Open implements the NodeOpener interface. Reads materialize a
// placeholder first; writes stage the file, starting from the tracked
// bytes.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	write := !req.Flags.IsReadOnly()
	fileLogger.Debug("Opening file %q with flags %v", f.path.String(), req.Flags)

	var (
		ent *state.Entry
		err error
	)
	if write {
		ent, err = f.fs.engine.StageForWrite(ctx, f.path, false, 0)
	} else {
		ent, err = f.fs.engine.MaterializeForRead(ctx, f.path)
	}
	if err != nil {
		fileLogger.Warn("Failed to open %q: %v", f.path.String(), err)
		return nil, ToFuseError(NewFSError(OpOpen, f.path.String(), err))
	}

	handle, err := f.fs.openHandle(ctx, ent, req.Flags, write)
	if err != nil {
		fileLogger.Error("Failed to open backing file: %v", err)
		return nil, ToFuseError(NewFSError(OpOpen, f.path.String(), err))
	}

	// Sizes change when content arrives; the kernel must not trim reads to
	// a cached size.
	resp.Flags |= fuse.OpenDirectIO

	fileLogger.Debug("Successfully opened file %q", f.path.String())
	return handle, nil
}

// Setattr implements the NodeSetattrer interface.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if err := f.fs.setattr(ctx, f.path, req); err != nil {
		return err
	}
	return f.Attr(ctx, &resp.Attr)
}

// Readlink implements the NodeReadlinker interface. Only user symlinks are
// visible as links; store links look like regular files.
func (f *File) Readlink(_ context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	snap, err := f.fs.resolver().Inspect(f.path)
	if err != nil {
		return "", ToFuseError(NewFSError(OpLookup, f.path.String(), err))
	}
	if !snap.Symlink {
		return "", syscall.EINVAL
	}
	return snap.Target, nil
}

// Fsync implements the NodeFsyncer interface. Store objects are immutable,
// so only regular files need syncing.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	snap, err := f.fs.resolver().Inspect(f.path)
	if err != nil {
		return ToFuseError(NewFSError(OpFsync, f.path.String(), err))
	}
	if snap.Annexed || snap.Symlink {
		return nil
	}

	file, err := os.Open(f.fs.resolver().Backing(f.path))
	if err != nil {
		return ToFuseError(NewFSError(OpFsync, f.path.String(), err))
	}
	defer file.Close()
	if err := file.Sync(); err != nil {
		return ToFuseError(NewFSError(OpFsync, f.path.String(), err))
	}
	return nil
}

// Getxattr implements the NodeGetxattrer interface. The state attributes
// are read from the resolver and never fetch content.
func (f *File) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	fileLogger.Debug("Getting xattr %q for file %q", req.Name, f.path.String())

	_, snap, err := f.fs.resolver().Stat(f.path)
	if err != nil {
		return ToFuseError(NewFSError(OpGetattr, f.path.String(), err))
	}

	switch req.Name {
	case XattrState:
		resp.Xattr = []byte(snap.State.String())
	case XattrKey:
		if !snap.Annexed {
			return fuse.ErrNoXattr
		}
		resp.Xattr = []byte(snap.Key)
	default:
		return fuse.ErrNoXattr
	}
	return nil
}

// Listxattr implements the NodeListxattrer interface.
func (f *File) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	snap, err := f.fs.resolver().Inspect(f.path)
	if err != nil {
		return ToFuseError(NewFSError(OpGetattr, f.path.String(), err))
	}
	resp.Append(XattrState)
	if snap.Annexed {
		resp.Append(XattrKey)
	}
	return nil
}

// openHandle opens ent's backing file with the access mode of flags. A
// writer handle takes over the writer StageForWrite registered; if the open
// fails that writer is given back.
func (s *ShareFS) openHandle(ctx context.Context, ent *state.Entry, flags fuse.OpenFlags, write bool) (*Handle, error) {
	mode := os.O_RDONLY
	switch {
	case flags.IsWriteOnly():
		mode = os.O_WRONLY
	case flags.IsReadWrite():
		mode = os.O_RDWR
	}
	if flags&fuse.OpenTruncate != 0 && mode != os.O_RDONLY {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(ent.Backing(), mode, 0)
	if err != nil {
		if write {
			if relErr := s.engine.Release(ctx, ent); relErr != nil {
				fileLogger.Warn("Could not commit %q after failed open: %v", ent.Path().String(), relErr)
			}
		}
		return nil, err
	}
	return &Handle{fs: s, ent: ent, file: file, write: write}, nil
}

// Handle is an open file. Bytes go straight to the backing file; the
// entry's state is managed by the engine.
type Handle struct {
	fs    *ShareFS
	ent   *state.Entry
	file  *os.File
	write bool
	mu    sync.RWMutex
}

// Read implements the HandleReader interface, reading data from the file.
func (h *Handle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fileLogger.Trace("Reading %d bytes from file %q at offset %d",
		req.Size, h.ent.Path().String(), req.Offset)

	resp.Data = make([]byte, req.Size)
	n, err := h.file.ReadAt(resp.Data, req.Offset)
	if err != nil && err != io.EOF {
		fileLogger.Error("Failed to read from file: %v", err)
		return ToFuseError(NewFSError(OpRead, h.ent.Path().String(), err))
	}

	resp.Data = resp.Data[:n]
	fileLogger.Trace("Successfully read %d bytes", n)
	return nil
}

// Write implements the HandleWriter interface.
func (h *Handle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.write {
		return syscall.EBADF
	}
	n, err := h.file.WriteAt(req.Data, req.Offset)
	resp.Size = n
	if err != nil {
		fileLogger.Error("Failed to write to file: %v", err)
		return ToFuseError(NewFSError(OpWrite, h.ent.Path().String(), err))
	}
	fileLogger.Trace("Wrote %d bytes to %q at offset %d", n, h.ent.Path().String(), req.Offset)
	return nil
}

// Flush implements the HandleFlusher interface.
func (h *Handle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.write {
		return nil
	}
	if err := h.file.Sync(); err != nil {
		return ToFuseError(NewFSError(OpFsync, h.ent.Path().String(), err))
	}
	return nil
}

// Release implements the HandleReleaser interface. Releasing the last
// writer hands the file to the store; if that fails the file stays dirty
// and is retried by the next release or sync.
func (h *Handle) Release(ctx context.Context, _ *fuse.ReleaseRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	vp := h.ent.Path()
	fileLogger.Debug("Closing file %q", vp.String())
	if err := h.file.Close(); err != nil {
		fileLogger.Warn("Closing backing file of %q: %v", vp.String(), err)
	}

	if h.write {
		if err := h.fs.engine.Release(ctx, h.ent); err != nil {
			fileLogger.Warn("Could not commit %q, leaving it dirty: %v", vp.String(), err)
		}
	}
	return nil
}
