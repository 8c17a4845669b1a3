package rollcheck

import (
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// UpExt is the suffix of the file that applies a migration.
	UpExt = ".up.sql"
	// DownExt is the suffix of the file that rolls a migration back.
	DownExt = ".down.sql"
)

// Migration is the SQL of one direction of a migration.
type Migration struct {
	ID  string // the filename of the migration, without the .up.sql / .down.sql extension
	SQL string // the contents of the migration file
}

// MD5 computes the MD5 hash of the SQL for this migration. After the up
// half of a migration is applied, the [AppliedMigration] stores this hash in
// its Checksum field.
func (m *Migration) MD5() string {
	return fmt.Sprintf("%x", md5.Sum([]byte(m.SQL)))
}

// AppliedMigration is a record in the tracking table.
type AppliedMigration struct {
	ID        string
	Checksum  string    // The MD5 hash of the up SQL of this migration
	Batch     int       // Migrations applied by the same Up share a batch
	AppliedAt time.Time // When the migration was run
}

// IDFromFilename removes directory paths and migration extensions from the
// filename to return just the id.
//
// Examples:
//
//	"0001_initial" == IDFromFilename("migrations/0001_initial.up.sql")
//	"0001_initial" == IDFromFilename("0001_initial.down.sql")
//	"0002_whatever" == IDFromFilename("0002_whatever.sql")
func IDFromFilename(filename string) string {
	base := filepath.Base(filename)
	for _, ext := range []string{UpExt, DownExt, ".sql"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// ReadMigration loads the migration file at path. The id is derived from the
// file name.
func ReadMigration(path string) (Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, err
	}
	return Migration{ID: IDFromFilename(path), SQL: string(data)}, nil
}

// DiscoverIDs returns the ids of every "*.up.sql" file found directly inside
// the given roots, in ascending lexicographical order. A migration present in
// more than one root is listed once. Roots that don't exist are skipped.
func DiscoverIDs(roots ...string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read migrations from %s: %w", root, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, UpExt) {
				continue
			}
			id := IDFromFilename(name)
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	SortIDs(ids)
	return ids, nil
}

// SortIDs sorts migration ids in ascending lexicographical order. This means
// that they should show up in the same order that they appear when you use
// `ls` or `sort`.
func SortIDs(ids []string) {
	sort.Strings(ids)
}
