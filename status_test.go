package rollcheck_test

import (
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/rollcheck"
)

const laravelReport = `
  Migration name .............................................. Batch / Status
  2025_07_24_122711_migration_efg ................................... [11] Ran
  2025_07_29_084338_add_columns ....................................... Pending
  2025_07_29_091000_add_indexes ....................................... Pending
`

func TestParsePending(t *testing.T) {
	t.Parallel()
	check.Equal(t, []string{
		"2025_07_29_084338_add_columns",
		"2025_07_29_091000_add_indexes",
	}, rollcheck.ParsePending(laravelReport))
}

func TestParsePendingEmpty(t *testing.T) {
	t.Parallel()
	check.Equal(t, []string(nil), rollcheck.ParsePending(""))
	check.Equal(t, []string(nil), rollcheck.ParsePending("\n\n"))
	check.Equal(t, []string(nil), rollcheck.ParsePending(
		"  Migration name .............................................. Batch / Status\n",
	))
}

func TestParsePendingIgnoresNoise(t *testing.T) {
	t.Parallel()
	report := strings.Join([]string{
		"INFO  Running migrations.",
		"  0001_initial ....... [1] Ran",
		"  0002_followup ....... Pending",
		"  0003_not_a_record Pending",
		"  0004_trailing ....... Pending but not really",
		"  0005_ran_later ....... [2]   Ran",
	}, "\n")
	check.Equal(t, []string{"0002_followup"}, rollcheck.ParsePending(report))
}

func TestParsePendingDeduplicates(t *testing.T) {
	t.Parallel()
	report := strings.Join([]string{
		"  0002_b ....... Pending",
		"  0001_a ....... Pending",
		"  0002_b ....... Pending",
	}, "\n")
	// First occurrence wins, and the report's order is kept as-is.
	check.Equal(t, []string{"0002_b", "0001_a"}, rollcheck.ParsePending(report))
}

func TestParsePendingLineEndings(t *testing.T) {
	t.Parallel()
	lines := []string{
		"  Migration name ....... Batch / Status",
		"  0001_a ....... Pending",
		"  0002_b ....... Pending",
	}
	expected := []string{"0001_a", "0002_b"}
	for _, sep := range []string{"\n", "\r\n", "\r"} {
		check.Equal(t, expected, rollcheck.ParsePending(strings.Join(lines, sep)+sep))
	}
}

func TestParsePendingIsDeterministic(t *testing.T) {
	t.Parallel()
	first := rollcheck.ParsePending(laravelReport)
	for range 10 {
		check.Equal(t, first, rollcheck.ParsePending(laravelReport))
	}
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()
	report := rollcheck.FormatStatus([]rollcheck.StatusEntry{
		{ID: "0001_create_users", Batch: 1},
		{ID: "0002_add_users_name", Batch: 12},
		{ID: "0003_index_users_email"},
	})
	lines := strings.Split(strings.TrimSuffix(report, "\n"), "\n")
	check.Equal(t, 4, len(lines))
	check.True(t, strings.HasPrefix(lines[0], "  Migration name ."))
	check.True(t, strings.HasSuffix(lines[0], ". Batch / Status"))
	check.True(t, strings.HasSuffix(lines[1], ". [1] Ran"))
	check.True(t, strings.HasSuffix(lines[2], ". [12] Ran"))
	check.True(t, strings.HasSuffix(lines[3], ". Pending"))
	for _, line := range lines {
		check.Equal(t, len(lines[0]), len(line))
	}
	check.Equal(t, []string{"0003_index_users_email"}, rollcheck.ParsePending(report))
}

func TestFormatStatusLongIDs(t *testing.T) {
	t.Parallel()
	id := strings.Repeat("x", 100)
	report := rollcheck.FormatStatus([]rollcheck.StatusEntry{{ID: id}})
	check.Equal(t, []string{id}, rollcheck.ParsePending(report))
}
