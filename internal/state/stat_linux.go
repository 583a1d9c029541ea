//go:build linux

package state

import (
	"os"
	"syscall"
	"time"
)

func fillTimes(snap *Snapshot, info os.FileInfo) {
	snap.Mtime = info.ModTime()
	snap.Atime = snap.Mtime
	snap.Ctime = snap.Mtime
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	snap.Atime = time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	snap.Ctime = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	snap.Uid = st.Uid
	snap.Gid = st.Gid
}
