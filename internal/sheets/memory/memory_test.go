package memory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreRowsAreCopies(t *testing.T) {
	seed := [][]string{{"DATE", "Destination"}, {"2024-01-10", "Lagos"}}
	s := New(seed)
	seed[1][1] = "changed"

	rows, err := s.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if rows[1][1] != "Lagos" {
		t.Fatalf("store shares the seed slice: %v", rows)
	}
	rows[1][1] = "mutated"
	again, _ := s.Rows(context.Background())
	if again[1][1] != "Lagos" {
		t.Fatalf("store shares returned rows: %v", again)
	}

	s.Set([][]string{{"DATE"}})
	again, _ = s.Rows(context.Background())
	if len(again) != 1 {
		t.Errorf("Set did not replace rows: %v", again)
	}
	if s.Name() != "memory" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestNewFromCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "seed.csv")
	if err := os.WriteFile(p, []byte("DATE,Destination,Profit\n2024-01-10,Lagos,100\n2024-01-11,Accra\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromCSV(p)
	if err != nil {
		t.Fatalf("NewFromCSV: %v", err)
	}
	rows, _ := s.Rows(context.Background())
	want := [][]string{
		{"DATE", "Destination", "Profit"},
		{"2024-01-10", "Lagos", "100"},
		{"2024-01-11", "Accra"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}

	// Header cells reach the normalizer untouched, repeats and blanks included.
	raw := filepath.Join(dir, "raw.csv")
	if err := os.WriteFile(raw, []byte("Profit,,Profit,Destination\n1,x,2,Lagos\n3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err = NewFromCSV(raw)
	if err != nil {
		t.Fatalf("NewFromCSV: %v", err)
	}
	rows, _ = s.Rows(context.Background())
	want = [][]string{
		{"Profit", "", "Profit", "Destination"},
		{"1", "x", "2", "Lagos"},
		{"3"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %q, want %q", rows, want)
	}

	if _, err := NewFromCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
