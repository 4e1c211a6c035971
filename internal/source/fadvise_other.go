//go:build !linux
// +build !linux

package source

import "os"

func adviseBackward(*os.File) error {
	return nil
}
