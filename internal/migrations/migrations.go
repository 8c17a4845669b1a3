// migrations contains example migrations that are used in tests.
//
//   - reversible: every migration can be rolled back
//   - irreversible: the second migration's down file forgets to drop the
//     column that its up file adds
package migrations

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is an embedded filesystem that contains the example migration sets, one
// per directory.
//
//go:embed reversible irreversible
var FS embed.FS

// WriteTo copies the files of one migration set into dir, which must exist,
// and returns dir. Tests use it to get a writable copy of a set.
func WriteTo(set string, dir string) (string, error) {
	sub, err := fs.Sub(FS, set)
	if err != nil {
		return "", err
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(sub, entry.Name())
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}
