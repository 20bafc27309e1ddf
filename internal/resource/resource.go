// Package resource resolves bundled artifacts by logical name under a resource root.
package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolutionError reports that a logical artifact name could not be turned into a usable path.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

var errOutsideRoot = errors.New("path escapes resource root")

// Resolver looks up artifacts relative to Root.
type Resolver struct {
	Root string
}

func NewResolver(root string) *Resolver {
	if root == "" {
		root = DefaultRoot()
	}
	return &Resolver{Root: root}
}

// DefaultRoot is "<dir of the running executable>/resources".
func DefaultRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "resources"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "resources")
}

// Resolve returns the absolute path of name under Root. name uses forward
// slashes and must stay inside Root. The target must exist.
func (r *Resolver) Resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &ResolutionError{Name: name, Err: errOutsideRoot}
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", &ResolutionError{Name: name, Err: err}
	}
	p := filepath.Join(root, clean)
	if _, err := os.Stat(p); err != nil {
		return "", &ResolutionError{Name: name, Err: err}
	}
	return p, nil
}
