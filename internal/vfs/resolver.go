// Package vfs implements path resolution and an in-memory virtual
// filesystem backed by a remote drive gateway.
package vfs

import "strings"

const sep = "/"

// segments splits a POSIX-style path into the walk spots the resolver
// visits in order. If the path does not start with "/", a synthetic
// leading "." is prepended so the walk begins at cwd, mirroring the
// original PathWalker's behavior.
func segments(path string) []string {
	spots := make([]string, 0, 4)
	if !strings.HasPrefix(path, sep) {
		spots = append(spots, ".")
	}
	for _, s := range strings.Split(path, sep) {
		spots = append(spots, s)
	}
	return spots
}

// isAbsolute reports whether the first walk segment is not the synthetic
// "." cwd marker.
func isAbsolute(spots []string) bool {
	return len(spots) == 0 || spots[0] != "."
}
