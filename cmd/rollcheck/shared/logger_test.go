package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/rollcheck"
)

func TestLogAdapterWritesFields(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	adapter := LogAdapter{log.NewWithOptions(&out, log.Options{Formatter: log.JSONFormatter})}
	adapter.Log(context.Background(), rollcheck.LogLevelWarning, "cleanup failed",
		rollcheck.LogField{Key: "run_id", Value: "abc"},
	)

	var line map[string]any
	assert.Nil(t, json.Unmarshal(out.Bytes(), &line))
	check.Equal(t, "warn", line["level"])
	check.Equal(t, "cleanup failed", line["msg"])
	check.Equal(t, "abc", line["run_id"])
}

func TestLogAdapterSkipsDebugByDefault(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	adapter := LogAdapter{log.NewWithOptions(&out, log.Options{Formatter: log.JSONFormatter})}
	adapter.Log(context.Background(), rollcheck.LogLevelDebug, "capturing baseline")
	check.Equal(t, "", out.String())
}
