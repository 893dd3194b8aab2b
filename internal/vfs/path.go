package vfs

import (
	"strings"
)

// Normalize returns the lookup key for a path: backslashes become forward
// slashes and leading "./" segments are removed. Normalize is idempotent.
func Normalize(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return path
}

// fsName maps a normalized key onto the slash-separated, rooted-at-"." form
// that io/fs and afero's memory filesystem expect. A leading slash is
// dropped; keys with empty or parent segments report false.
func fsName(key string) (string, bool) {
	name := strings.TrimPrefix(key, "/")
	if name == "" || !validName(name) {
		return "", false
	}
	return name, true
}

func validName(name string) bool {
	for _, elem := range strings.Split(name, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return false
		}
	}
	return true
}
