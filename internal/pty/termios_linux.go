//go:build linux

package pty

import "golang.org/x/sys/unix"

func enableIUTF8(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	termios.Iflag |= unix.IUTF8

	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
