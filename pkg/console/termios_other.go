//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package console

// characterMode leaves the console in line mode where termios is not
// available.
func characterMode(fd int) (func() error, error) {
	return func() error { return nil }, nil
}
