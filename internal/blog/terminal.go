package blog

import (
	"os"

	"golang.org/x/sys/unix"
)

// checkTerminal mirrors distr1/distri/internal/batch's isTerminal
// check: an ioctl that only succeeds on a real tty.
func checkTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
