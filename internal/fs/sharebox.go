package fs

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"sharebox/internal/config"
	"sharebox/internal/logging"
	"sharebox/internal/materialize"
	"sharebox/internal/state"
	"sharebox/internal/syncer"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/cenkalti/backoff"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// attrValid is how long the kernel may cache attributes. Placeholders
// change size on first open, so it stays short.
const attrValid = 100 * time.Millisecond

// ShareFS is the overlay filesystem. It translates kernel requests into
// resolver lookups and engine transitions; it holds no file state itself.
type ShareFS struct {
	cfg    *config.Config
	engine *materialize.Engine
	sched  *syncer.Scheduler

	conn *fuse.Conn
	done chan struct{}

	// Ownership reported to the kernel. Without a PUID/PGID override the
	// backing object's owner is reported.
	uid, gid           uint32
	fixedUID, fixedGID bool

	mu sync.Mutex
}

// NewShareFS creates the filesystem over engine's backing directory.
func NewShareFS(cfg *config.Config, engine *materialize.Engine, sched *syncer.Scheduler) (*ShareFS, error) {
	vfsLogger.Info("Creating sharebox filesystem")
	vfsLogger.Debug("Backing directory: %s", cfg.GitDir)

	if _, err := os.ReadDir(cfg.GitDir); err != nil {
		vfsLogger.Error("Cannot read backing directory: %v", err)
		return nil, fmt.Errorf("backing directory not readable: %w", err)
	}

	s := &ShareFS{
		cfg:    cfg,
		engine: engine,
		sched:  sched,
		uid:    safeIntToUint32(os.Getuid()),
		gid:    safeIntToUint32(os.Getgid()),
	}

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			s.uid, s.fixedUID = uint32(puid), true
			vfsLogger.Debug("Using PUID from environment: %d", s.uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			s.gid, s.fixedGID = uint32(pgid), true
			vfsLogger.Debug("Using PGID from environment: %d", s.gid)
		}
	}
	return s, nil
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (s *ShareFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: s, path: state.NewVirtualPath("/")}, nil
}

func (s *ShareFS) resolver() *state.Resolver {
	return s.engine.Resolver()
}

// fillAttr copies a snapshot into kernel attributes.
func (s *ShareFS) fillAttr(snap state.Snapshot, a *fuse.Attr) {
	a.Valid = attrValid
	a.Mode = snap.Mode
	if snap.IsDir {
		a.Mode |= os.ModeDir
	}
	a.Size = safeInt64ToUint64(snap.Size)
	a.Blocks = blocks(snap.Size)
	a.BlockSize = 4096
	a.Mtime = snap.Mtime
	a.Atime = snap.Atime
	a.Ctime = snap.Ctime
	a.Uid, a.Gid = snap.Uid, snap.Gid
	if s.fixedUID {
		a.Uid = s.uid
	}
	if s.fixedGID {
		a.Gid = s.gid
	}
}

func waitForMount(mountpoint string) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 30)
	err := backoff.Retry(func() error {
		info, err := os.Stat(mountpoint)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", mountpoint)
		}
		return nil
	}, b)
	if err != nil {
		return fmt.Errorf("mount point not available after 3 seconds: %w", err)
	}
	return nil
}

// Mount mounts the overlay and serves it in the background.
func (s *ShareFS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting sharebox")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("Backing directory: %s", s.cfg.GitDir)

	mountOpts := []fuse.MountOption{
		fuse.FSName("sharebox"),
		fuse.Subtype("sharebox"),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
	}
	if s.cfg.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	vfsLogger.Debug("Mounting with %d options (allow_other=%v)", len(mountOpts), s.cfg.AllowOther)

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}

	s.mu.Lock()
	s.conn = c
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := fusefs.Serve(c, s); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Done is closed when the kernel connection ends, for example after an
// external fusermount -u.
func (s *ShareFS) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Unmount cleanly unmounts the filesystem.
func (s *ShareFS) Unmount(mountPoint string) error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if err := fuse.Unmount(mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	<-done
	if err := conn.Close(); err != nil {
		vfsLogger.Warn("Closing FUSE connection: %v", err)
	}
	vfsLogger.Info("Unmount completed successfully")
	return nil
}
