package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"titus/internal/amqp"
	"titus/internal/core"
	"titus/internal/metrics"
	"titus/internal/normalize"
	"titus/internal/sheets"
	"titus/internal/sheets/excel"
)

// SourceUpload names datasets that came from a browser upload.
const SourceUpload = "upload"

var ErrNoSource = errors.New("no default data source configured")

// Dataset is a normalized table plus where it came from. It is immutable
// once built and shared freely between requests.
type Dataset struct {
	Table       *core.Table
	Source      string
	Fingerprint string
	LoadedAt    time.Time
}

// Publisher announces new shared datasets.
type Publisher interface {
	PublishDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoadedMessage) error
}

// DatasetService loads tables from the configured source and from uploads.
// The shared dataset is replaced atomically; concurrent reloads collapse
// into one read of the source.
type DatasetService struct {
	source    sheets.RowSource
	publisher Publisher
	logger    *slog.Logger

	current atomic.Pointer[Dataset]
	group   singleflight.Group
	now     func() time.Time
}

// NewDatasetService wires a source and publisher; either may be nil.
func NewDatasetService(source sheets.RowSource, publisher Publisher, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{source: source, publisher: publisher, logger: logger, now: time.Now}
}

// HasSource reports whether a default source is configured.
func (s *DatasetService) HasSource() bool { return s.source != nil }

// Current returns the shared dataset, if one has been loaded.
func (s *DatasetService) Current() (*Dataset, bool) {
	d := s.current.Load()
	return d, d != nil
}

// Reload reads the default source, replaces the shared dataset and
// publishes dataset.loaded. A failed reload keeps the previous dataset.
func (s *DatasetService) Reload(ctx context.Context) (*Dataset, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	v, err, shared := s.group.Do("reload", func() (interface{}, error) {
		return s.reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Reload shared with a concurrent caller")
	}
	return v.(*Dataset), nil
}

func (s *DatasetService) reload(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	name := s.source.Name()

	rows, err := s.source.Rows(ctx)
	if err != nil {
		metrics.RecordDatasetLoad(name, 0, err, time.Since(start))
		return nil, fmt.Errorf("read %s source: %w", name, err)
	}
	d, err := s.Build(name, rows)
	metrics.RecordDatasetLoad(name, rowsOf(d), err, time.Since(start))
	if err != nil {
		return nil, err
	}

	prev := s.current.Swap(d)
	s.logger.InfoContext(ctx, "Dataset loaded",
		"source", name,
		"fingerprint", d.Fingerprint,
		"rows", d.Table.Len(),
		"columns", len(d.Table.Columns()),
		"duration", time.Since(start))

	if prev != nil && prev.Fingerprint == d.Fingerprint {
		return d, nil
	}
	s.publish(ctx, d)
	return d, nil
}

// LoadUpload reads the Data sheet of an uploaded workbook. The result
// belongs to the uploading session and does not replace the shared
// dataset.
func (s *DatasetService) LoadUpload(ctx context.Context, r io.Reader) (*Dataset, error) {
	start := time.Now()
	rows, err := excel.Read(r)
	if err != nil {
		metrics.RecordDatasetLoad(SourceUpload, 0, err, time.Since(start))
		return nil, err
	}
	d, err := s.Build(SourceUpload, rows)
	metrics.RecordDatasetLoad(SourceUpload, rowsOf(d), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Upload normalized",
		"fingerprint", d.Fingerprint,
		"rows", d.Table.Len(),
		"columns", len(d.Table.Columns()))
	return d, nil
}

// Build normalizes raw rows into a Dataset.
func (s *DatasetService) Build(source string, rows [][]string) (*Dataset, error) {
	t, err := normalize.Normalize(rows)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Table:       t,
		Source:      source,
		Fingerprint: Fingerprint(rows),
		LoadedAt:    s.now(),
	}, nil
}

func (s *DatasetService) publish(ctx context.Context, d *Dataset) {
	if s.publisher == nil {
		return
	}
	cols := make([]string, 0, len(d.Table.Columns()))
	for _, f := range d.Table.Columns() {
		cols = append(cols, f.Header())
	}
	msg := amqp.NewDatasetLoadedMessage(d.Source, d.Fingerprint, d.Table.Len(), cols)
	if err := s.publisher.PublishDatasetLoaded(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dataset loaded message", "error", err)
	}
}

// Fingerprint hashes the raw cells. Equal grids give equal fingerprints;
// cell boundaries are part of the hash, so ["ab"] and ["a","b"] differ.
func Fingerprint(rows [][]string) string {
	h := xxh3.New()
	var sep = []byte{0x1f}
	var eol = []byte{0x1e}
	for _, row := range rows {
		for _, cell := range row {
			h.WriteString(strconv.Itoa(len(cell)))
			h.Write(sep)
			h.WriteString(cell)
		}
		h.Write(eol)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func rowsOf(d *Dataset) int {
	if d == nil {
		return 0
	}
	return d.Table.Len()
}
