package fs

import (
	"context"
	"os"
	"syscall"

	"sharebox/internal/logging"
	"sharebox/internal/state"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir represents a directory of the backing repository. Directories carry
// no materialization state; only their children do.
type Dir struct {
	fs   *ShareFS
	path state.VirtualPath
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path.String())

	snap, err := d.fs.resolver().Inspect(d.path)
	if err != nil {
		return ToFuseError(NewFSError(OpGetattr, d.path.String(), err))
	}
	d.fs.fillAttr(snap, a)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
// It consults the resolver only and never fetches content.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.path.String())
	childPath := d.path.Join(name)

	if childPath.Hidden() {
		dirLogger.Trace("Hiding repository internals: %q", childPath.String())
		return nil, syscall.ENOENT
	}

	_, snap, err := d.fs.resolver().Stat(childPath)
	if err != nil {
		dirLogger.Debug("Path not found: %q", childPath.String())
		return nil, ToFuseError(NewFSError(OpLookup, childPath.String(), err))
	}

	if snap.IsDir {
		return &Dir{fs: d.fs, path: childPath}, nil
	}
	return &File{fs: d.fs, path: childPath}, nil
}

func direntType(snap state.Snapshot) fuse.DirentType {
	switch {
	case snap.IsDir:
		return fuse.DT_Dir
	case snap.Symlink:
		return fuse.DT_Link
	default:
		return fuse.DT_File
	}
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory
// contents. Entries are classified from the backing store; listing never
// materializes anything.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path.String())

	children, err := os.ReadDir(d.fs.resolver().Backing(d.path))
	if err != nil {
		return nil, ToFuseError(NewFSError(OpReadDir, d.path.String(), err))
	}

	entries := make([]fuse.Dirent, 0, len(children)+2)
	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})

	for _, child := range children {
		childPath := d.path.Join(child.Name())
		if childPath.Hidden() {
			continue
		}
		snap, err := d.fs.resolver().Inspect(childPath)
		if err != nil {
			dirLogger.Trace("Skipping %q: %v", childPath.String(), err)
			continue
		}
		entries = append(entries, fuse.Dirent{
			Name: child.Name(),
			Type: direntType(snap),
		})
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path.String(), len(entries))
	return entries, nil
}

// Create implements the NodeCreater interface. The new file is Dirty until
// its last writer releases it.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	childPath := d.path.Join(req.Name)
	dirLogger.Info("Creating %q (flags=%v, mode=%v)", childPath.String(), req.Flags, req.Mode)

	if childPath.Hidden() {
		return nil, nil, syscall.EPERM
	}
	if req.Flags&fuse.OpenExclusive != 0 {
		if _, err := d.fs.resolver().Inspect(childPath); err == nil {
			return nil, nil, syscall.EEXIST
		}
	}

	ent, err := d.fs.engine.StageForWrite(ctx, childPath, true, req.Mode&^req.Umask)
	if err != nil {
		return nil, nil, ToFuseError(NewFSError(OpCreate, childPath.String(), err))
	}

	handle, err := d.fs.openHandle(ctx, ent, req.Flags, true)
	if err != nil {
		return nil, nil, ToFuseError(NewFSError(OpCreate, childPath.String(), err))
	}
	resp.Flags |= fuse.OpenDirectIO

	return &File{fs: d.fs, path: childPath}, handle, nil
}

// Mkdir implements the NodeMkdirer interface.
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	newPath := d.path.Join(req.Name)
	dirLogger.Info("Creating new directory %q", newPath.String())

	if _, err := d.fs.engine.Mkdir(ctx, newPath, req.Mode&^req.Umask); err != nil {
		dirLogger.Warn("Mkdir %q failed: %v", newPath.String(), err)
		return nil, ToFuseError(NewFSError(OpMkdir, newPath.String(), err))
	}
	return &Dir{fs: d.fs, path: newPath}, nil
}

// Symlink implements the NodeSymlinker interface, creating a user symlink.
func (d *Dir) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	newPath := d.path.Join(req.NewName)
	if _, err := d.fs.engine.Symlink(ctx, newPath, req.Target); err != nil {
		return nil, ToFuseError(NewFSError(OpSymlink, newPath.String(), err))
	}
	return &File{fs: d.fs, path: newPath}, nil
}

// Remove implements the NodeRemover interface, removing a file or directory.
// Removing a placeholder never fetches it.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	childPath := d.path.Join(req.Name)
	dirLogger.Info("Removing %q (isDir=%v)", childPath.String(), req.Dir)

	var err error
	if req.Dir {
		err = d.fs.engine.Rmdir(ctx, childPath)
	} else {
		err = d.fs.engine.Unlink(ctx, childPath)
	}
	if err != nil {
		dirLogger.Warn("Remove %q failed: %v", childPath.String(), err)
		return ToFuseError(NewFSError(OpRemove, childPath.String(), err))
	}
	return nil
}

// Rename implements the NodeRenamer interface, renaming/moving a file or directory.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		dirLogger.Error("Target is not a valid directory type")
		return syscall.EINVAL
	}

	oldPath := d.path.Join(req.OldName)
	newPath := target.path.Join(req.NewName)
	dirLogger.Info("Renaming %q to %q", oldPath.String(), newPath.String())

	if err := d.fs.engine.Rename(ctx, oldPath, newPath); err != nil {
		return ToFuseError(NewFSError(OpRename, oldPath.String(), err))
	}
	return nil
}

// Setattr implements the NodeSetattrer interface.
func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if err := d.fs.setattr(ctx, d.path, req); err != nil {
		return err
	}
	return d.Attr(ctx, &resp.Attr)
}
