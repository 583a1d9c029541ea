// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Node represents a filesystem node (file or directory)
type Node interface {
	fs.Node
	fs.NodeSetattrer
}

// Directory represents a directory in the overlay
type Directory interface {
	Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
	fs.NodeCreater
	fs.NodeMkdirer
	fs.NodeSymlinker
	fs.NodeRemover
	fs.NodeRenamer
	fs.NodeGetxattrer
	fs.NodeSetxattrer
	fs.NodeListxattrer
}

// FileInterface represents a file in the overlay
type FileInterface interface {
	Node
	fs.NodeOpener
	fs.NodeFsyncer
	fs.NodeReadlinker
	fs.NodeGetxattrer
	fs.NodeListxattrer
}

// FileHandleInterface represents an open file handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
	fs.HandleFlusher
	fs.HandleReleaser
}

var (
	_ fs.FS               = (*ShareFS)(nil)
	_ fs.FSStatfser       = (*ShareFS)(nil)
	_ Directory           = (*Dir)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*Handle)(nil)
)
