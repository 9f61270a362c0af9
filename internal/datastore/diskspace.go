package datastore

// DiskFreeSpaceBytes reports the free space available on the filesystem
// containing path, for the HTTP facade's /prerequisites probe.
func DiskFreeSpaceBytes(path string) (uint64, error) {
	return getDiskFreeSpace(path)
}
