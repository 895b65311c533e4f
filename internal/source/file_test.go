package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeLogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	return path
}

func TestFileSourceSearchExport(t *testing.T) {
	path := writeLogFile(t, `{
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_index": "logs", "_source": {"message": "first", "service": "checkout"}},
				{"_index": "logs", "_source": {"message": "second"}}
			]
		}
	}`)

	records, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["message"] != "first" || records[0]["service"] != "checkout" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
}

func TestFileSourceWrappedList(t *testing.T) {
	for _, wrapper := range []string{"logs", "items"} {
		path := writeLogFile(t, `{"`+wrapper+`": [{"message": "hello"}]}`)
		records, err := NewFileSource(path).Fetch(context.Background())
		if err != nil {
			t.Fatalf("%s wrapper: %v", wrapper, err)
		}
		if len(records) != 1 || records[0]["message"] != "hello" {
			t.Fatalf("%s wrapper: unexpected records %v", wrapper, records)
		}
	}
}

func TestFileSourcePlainArray(t *testing.T) {
	path := writeLogFile(t, `[{"message": "a"}, {"message": "b"}]`)
	records, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestFileSourceEmptyObjectIsEmptyRun(t *testing.T) {
	path := writeLogFile(t, `{"took": 5, "timed_out": false}`)
	records, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected empty run, got error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestFileSourceUnrecognizedFormat(t *testing.T) {
	path := writeLogFile(t, `"just a string"`)
	if _, err := NewFileSource(path).Fetch(context.Background()); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatalf("expected read error")
	}
}
