// Package snapshot reads and writes the tabular PM2.5 snapshot the store is
// seeded from. Parquet files go through DuckDB, SQLite files through
// go-sqlite3 with the embedded migrations. NetCDF grids are read only, as the
// input of the offline converter.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/types"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

type Options struct {
	// LogSQL logs SQLite statements at debug level.
	LogSQL bool
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// DetectFormat returns override when set, otherwise the format implied by the
// file extension.
func DetectFormat(path, override string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(override))) {
	case FormatParquet:
		return FormatParquet, nil
	case FormatSQLite:
		return FormatSQLite, nil
	case "":
	default:
		return "", fmt.Errorf("unknown snapshot format %q", override)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("cannot detect snapshot format of %q", path)
	}
}

// Load reads every row with a pm25 value, in file order.
func Load(ctx context.Context, path string, format Format, opts Options) ([]types.Measurement, error) {
	var (
		records []types.Measurement
		err     error
	)
	switch format {
	case FormatParquet:
		records, err = loadParquet(ctx, path)
	case FormatSQLite:
		records, err = loadSQLite(ctx, path, opts)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	metrics.RecordSnapshotLoad(string(format), err)
	if err != nil {
		return nil, fmt.Errorf("load %s snapshot %s: %w", format, path, err)
	}

	opts.logger().Info("snapshot loaded", "path", path, "format", format, "records", len(records))
	return records, nil
}

// Write replaces the contents of path with records; row i gets id i.
func Write(ctx context.Context, path string, format Format, records []types.Measurement, opts Options) error {
	var err error
	switch format {
	case FormatParquet:
		err = writeParquet(ctx, path, records)
	case FormatSQLite:
		err = writeSQLite(ctx, path, records, opts)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return fmt.Errorf("write %s snapshot %s: %w", format, path, err)
	}

	opts.logger().Info("snapshot written", "path", path, "format", format, "records", len(records))
	return nil
}
