package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// Store serves a fixed set of rows. It backs demos and tests.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

func New(rows [][]string) *Store {
	return &Store{rows: copyRows(rows)}
}

// NewFromCSV seeds the store from a CSV file whose first line is the
// header row.
func NewFromCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed rows: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed rows %s: %w", path, err)
	}
	return New(rows), nil
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.rows), nil
}

// Set replaces the stored rows.
func (s *Store) Set(rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = copyRows(rows)
}

func (s *Store) Name() string { return "memory" }

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = append([]string(nil), row...)
	}
	return out
}
