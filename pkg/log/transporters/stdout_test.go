package transporters_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unreplied/pkg/log"
	"unreplied/pkg/log/transporters"
)

func TestStdout_WritesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	tr := transporters.NewStdoutWithWriter(&buf)

	if err := tr.Write(*log.NewEntry(log.Info, "first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tr.Write(*log.NewEntry(log.Error, "second")); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &m); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if m["level"] != "ERROR" || m["msg"] != "second" {
		t.Errorf("unexpected line %v", m)
	}
	if tr.Name() != "stdout" {
		t.Errorf("name = %q", tr.Name())
	}
}

func TestFile_WritesThroughLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unreplied.log")
	logger := log.New(log.Info, transporters.NewFile(transporters.FileOptions{Path: path}))

	logger.Info("to disk", "fid", 3)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to disk"`) {
		t.Errorf("file content = %q", string(data))
	}
}
