package framework

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a requested path resolves outside the
// repository root. Callers must fail before any file access.
var ErrPathEscape = errors.New("path escapes repository root")

// ResolveWithin resolves rel against root and verifies the result stays inside
// root. It returns the cleaned absolute path. No filesystem access is
// performed, so the check is safe to run before existence checks.
func ResolveWithin(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, rel)
	}
	target = filepath.Clean(target)
	if target == absRoot {
		return target, nil
	}
	if !strings.HasPrefix(target, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	return target, nil
}
