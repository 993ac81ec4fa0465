package main

import (
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// verifyMountPoint checks the supplied path against the mount points of the
// attached partitions. A miss is only a warning: a tree copied off an image
// is still walkable, it just will not carry the image's device metadata.
func verifyMountPoint(start string) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return
	}
	parts, err := disk.Partitions(true)
	if err != nil {
		logrus.Warnf("Cannot enumerate partitions: %v", err)
		return
	}
	for _, p := range parts {
		if p.Mountpoint == abs {
			logrus.Debugf("%s is mounted from %s (%s)", abs, p.Device, p.Fstype)
			return
		}
	}
	logrus.Warnf("%s is not the mount point of any attached partition", abs)
}
