//go:build linux

package graph

import (
	"time"

	"golang.org/x/sys/unix"
)

// lstatMeta reads the raw metadata of one object without following symlinks.
func lstatMeta(path string) (RawMeta, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return RawMeta{}, err
	}
	return RawMeta{
		Inode: int64(st.Ino),
		Mode:  uint32(st.Mode),
		Nlink: uint64(st.Nlink),
		UID:   st.Uid,
		GID:   st.Gid,
		Size:  st.Size,
		Atime: time.Unix(st.Atim.Unix()),
		Mtime: time.Unix(st.Mtim.Unix()),
		Ctime: time.Unix(st.Ctim.Unix()),
	}, nil
}
