package source

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseBackward tells the kernel that readahead is useless for f, since it
// is read from the end toward the start.
func adviseBackward(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}
