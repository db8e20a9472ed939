//go:build unix

package extract

import "golang.org/x/sys/unix"

// FreeSpace returns the number of bytes available to unprivileged users on
// the filesystem containing dir.
func FreeSpace(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
