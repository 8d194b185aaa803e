// Package testutil provides golden file helpers for vigil tests.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// update rewrites golden files instead of comparing against them.
// Usage: go test ./... -update
var update = flag.Bool("update", false, "update golden files")

// AssertGolden compares got against testdata/<goldenFile>. With -update it
// writes got to the golden file instead.
func AssertGolden(t *testing.T, got, goldenFile string) {
	t.Helper()

	goldenPath := filepath.Join("testdata", goldenFile)

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatalf("failed to create testdata directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, []byte(got), 0o644); err != nil {
			t.Fatalf("failed to update golden file %s: %v", goldenPath, err)
		}
		t.Logf("updated golden file: %s", goldenPath)
		return
	}

	want, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file %s does not exist; run with -update to create it", goldenPath)
		}
		t.Fatalf("failed to read golden file %s: %v", goldenPath, err)
	}

	if got != string(want) {
		t.Errorf("output mismatch for %s\n\ngot:\n%s\n\nwant:\n%s\n\nrun with -update to refresh golden files", goldenPath, got, string(want))
	}
}

// AssertGoldenScreen compares screen rows against a golden file, one row per
// line. Trailing blanks on each row are ignored.
func AssertGoldenScreen(t *testing.T, rows []string, goldenFile string) {
	t.Helper()
	AssertGolden(t, ScreenText(rows), goldenFile)
}

// ScreenText joins rows with newlines, trimming trailing blanks per row.
func ScreenText(rows []string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.TrimRight(row, " "))
		sb.WriteByte('\n')
	}

	return sb.String()
}
