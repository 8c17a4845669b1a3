package rollcheck

import (
	"os"
	"path/filepath"
)

// Resolver maps a migration id to the file that holds it, searching an
// ordered list of candidate roots. The first root has the highest priority.
//
// Resolved paths are joined onto the configured roots exactly as they were
// given: a relative root yields a relative path, an absolute root an absolute
// one. No base directory is ever stripped.
type Resolver struct {
	ext   string
	roots []string
}

// NewResolver returns a [Resolver] that looks for "<id><ext>" in each of the
// given roots. It returns [ErrNoRoots] if roots is empty.
func NewResolver(ext string, roots ...string) (*Resolver, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	return &Resolver{ext: ext, roots: append([]string(nil), roots...)}, nil
}

// Roots returns a copy of the candidate roots in priority order.
func (r *Resolver) Roots() []string {
	return append([]string(nil), r.roots...)
}

// Ext returns the extension appended to every id.
func (r *Resolver) Ext() string {
	return r.ext
}

// Resolve returns the path of the first candidate root that contains the
// migration. If no root contains it, the path under the first root is
// returned, so that whoever opens the file reports a clear "not found"
// error. Resolve never fails.
func (r *Resolver) Resolve(id string) string {
	name := id + r.ext
	for _, root := range r.roots {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return filepath.Join(r.roots[0], name)
}
