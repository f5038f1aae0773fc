//go:build unix

package lock

import "golang.org/x/sys/unix"

// linked reports whether tmp was successfully hard-linked as marker: the
// unique file then has exactly two names.
func linked(tmp, marker string) bool {
	var st unix.Stat_t
	if err := unix.Stat(tmp, &st); err != nil {
		return false
	}
	return st.Nlink == 2
}
