package testutil

import (
	"os"
	"testing"
)

func TestAssertGolden(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("testdata", 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := os.WriteFile("testdata/test.golden", []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	mockT := &testing.T{}
	AssertGolden(mockT, "line one\nline two\n", "test.golden")

	if mockT.Failed() {
		t.Error("AssertGolden should pass when content matches")
	}
}

func TestAssertGoldenScreen(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("testdata", 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := os.WriteFile("testdata/screen.golden", []byte("$ ls\nfoo\n\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	mockT := &testing.T{}
	AssertGoldenScreen(mockT, []string{"$ ls  ", "foo", "   "}, "screen.golden")

	if mockT.Failed() {
		t.Error("AssertGoldenScreen should ignore trailing blanks")
	}
}

func TestScreenText(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want string
	}{
		{name: "empty", rows: nil, want: ""},
		{name: "single row", rows: []string{"hi"}, want: "hi\n"},
		{name: "trailing blanks trimmed", rows: []string{"a  ", "  b "}, want: "a\n  b\n"},
		{name: "blank row kept", rows: []string{"a", "", "c"}, want: "a\n\nc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScreenText(tt.rows); got != tt.want {
				t.Errorf("ScreenText() = %q, want %q", got, tt.want)
			}
		})
	}
}
