//go:build !unix

package lock

import "os"

func linked(tmp, marker string) bool {
	a, err := os.Stat(tmp)
	if err != nil {
		return false
	}
	b, err := os.Stat(marker)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}
