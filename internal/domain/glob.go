package domain

import "path"

// globMatch implements fnmatch-style glob matching for class patterns like
// "pwa-*". path.Match already implements POSIX shell glob semantics over an
// arbitrary string, which is what fnmatch provides here.
func globMatch(pattern, s string) (bool, error) {
	return path.Match(pattern, s)
}
