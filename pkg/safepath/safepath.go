// Package safepath decides whether an archive entry name can be written
// under an extraction root without escaping it.
package safepath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects how parent-directory references are detected.
type Mode string

const (
	// Segment rejects names with a ".." path segment. "a..b.txt" is allowed.
	Segment Mode = "segment"
	// Substring rejects any name containing "..", even inside a file name.
	Substring Mode = "substring"
)

var (
	ErrEmpty     = errors.New("empty entry name")
	ErrAbsolute  = errors.New("absolute entry name")
	ErrTraversal = errors.New("parent directory traversal")
	ErrEscape    = errors.New("entry resolves outside destination")
)

// Check returns nil when name is a relative entry name free of traversal
// under the given mode. Both '/' and '\' count as separators.
func Check(name string, mode Mode) error {
	if name == "" {
		return ErrEmpty
	}

	if isAbsolute(name) {
		return ErrAbsolute
	}

	if mode == Substring {
		if strings.Contains(name, "..") {
			return ErrTraversal
		}
		return nil
	}

	for _, segment := range strings.FieldsFunc(name, isSeparator) {
		if segment == ".." {
			return ErrTraversal
		}
	}

	return nil
}

// Join places the slash-separated entry name under root and verifies the
// result is still inside root.
func Join(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEscape, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrEscape
	}

	return target, nil
}

// ParseMode maps a configuration value to a Mode, defaulting to Segment.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", Segment:
		return Segment, nil
	case Substring:
		return Substring, nil
	default:
		return "", fmt.Errorf("unknown traversal mode %q", s)
	}
}

func isAbsolute(name string) bool {
	if isSeparator(rune(name[0])) {
		return true
	}

	// Drive letters are absolute no matter which OS reads the archive.
	if len(name) >= 2 && name[1] == ':' && isLetter(name[0]) {
		return true
	}

	return filepath.IsAbs(name)
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
