package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Compile-time interface check.
var _ ValuationArchive = (*ParquetArchive)(nil)

// ParquetArchive implements ValuationArchive using one Parquet file per UTC
// day on disk.
type ParquetArchive struct {
	DataDir string

	mu sync.Mutex // serialises read-merge-write of a day file
}

// NewParquetArchive creates a ParquetArchive rooted at the given data
// directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// ValuationRecord is the Parquet schema for a published valuation. Value is
// kept as a decimal string so no precision is lost.
type ValuationRecord struct {
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Value     string `parquet:"value"`
	Symbols   int64  `parquet:"symbols"`
	Failed    string `parquet:"failed"` // comma-separated symbols
}

// ---------------------------------------------------------------------------
// ValuationArchive implementation
// ---------------------------------------------------------------------------

// WriteValuations merges valuations into their day files at:
//
//	<DataDir>/valuations/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) WriteValuations(_ context.Context, vals []domain.Valuation) error {
	if len(vals) == 0 {
		return nil
	}

	groups := make(map[string][]ValuationRecord)
	for _, v := range vals {
		date := v.At.UTC().Format("2006-01-02")
		groups[date] = append(groups[date], ValuationRecord{
			Timestamp: v.At.UnixMilli(),
			Value:     v.Value.String(),
			Symbols:   int64(v.Symbols),
			Failed:    strings.Join(v.Failed, ","),
		})
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for date, records := range groups {
		t, _ := time.Parse("2006-01-02", date)
		path := a.valuationPath(t)

		existing, _ := readParquetFile[ValuationRecord](path)
		merged := mergeValuationRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing valuations for %s: %w", date, err)
		}
	}
	return nil
}

// ReadValuations reads the day file for day. A missing file yields no
// valuations and no error.
func (a *ParquetArchive) ReadValuations(_ context.Context, day time.Time) ([]domain.Valuation, error) {
	path := a.valuationPath(day)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	a.mu.Lock()
	records, err := readParquetFile[ValuationRecord](path)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vals := make([]domain.Valuation, 0, len(records))
	for _, r := range records {
		value, err := decimal.NewFromString(r.Value)
		if err != nil {
			return nil, fmt.Errorf("valuation at %d: %w", r.Timestamp, err)
		}
		v := domain.Valuation{
			Value:   value,
			Symbols: int(r.Symbols),
			At:      time.UnixMilli(r.Timestamp).UTC(),
		}
		if r.Failed != "" {
			v.Failed = strings.Split(r.Failed, ",")
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// ListDays returns the dates (YYYY-MM-DD) that have archived valuations,
// oldest first.
func (a *ParquetArchive) ListDays() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.DataDir, "valuations"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var days []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".parquet"); ok && !e.IsDir() {
			days = append(days, name)
		}
	}
	sort.Strings(days)
	return days, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// valuationPath returns the filesystem path for a day's valuation file.
// Layout: <dataDir>/valuations/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) valuationPath(t time.Time) string {
	return filepath.Join(a.DataDir, "valuations", t.UTC().Format("2006-01-02")+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeValuationRecords deduplicates by timestamp, preferring incoming
// records. Results are sorted by timestamp.
func mergeValuationRecords(existing, incoming []ValuationRecord) []ValuationRecord {
	seen := make(map[int64]ValuationRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]ValuationRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
