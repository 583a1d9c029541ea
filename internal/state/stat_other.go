//go:build !linux

package state

import (
	"os"
)

// We don't track access or change time off Linux.
func fillTimes(snap *Snapshot, info os.FileInfo) {
	snap.Mtime = info.ModTime()
	snap.Atime = snap.Mtime
	snap.Ctime = snap.Mtime
}
