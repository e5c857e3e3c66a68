package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"airquality-server/internal/modules/airquality/types"
)

// DuckDB runs in memory; it only reads and writes the parquet file.
const duckDBMemory = ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false"

func openDuckDB() (*sql.DB, error) {
	conn, err := sql.Open("duckdb", duckDBMemory)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// Tables live in the single in-memory database; keep one connection.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// quoteLiteral renders s as a single-quoted SQL string.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func loadParquet(ctx context.Context, path string) ([]types.Measurement, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	conn, err := openDuckDB()
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	query := fmt.Sprintf(`
		SELECT CAST(lat AS DOUBLE), CAST(lon AS DOUBLE), CAST(GWRPM25 AS DOUBLE)
		FROM read_parquet(%s)
		WHERE GWRPM25 IS NOT NULL`, quoteLiteral(path))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []types.Measurement{}
	for rows.Next() {
		var m types.Measurement
		if err := rows.Scan(&m.Lat, &m.Lon, &m.PM25); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if math.IsNaN(m.PM25) {
			continue
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

func writeParquet(ctx context.Context, path string, records []types.Measurement) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	conn, err := openDuckDB()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx,
		`CREATE TABLE measurements (lat DOUBLE NOT NULL, lon DOUBLE NOT NULL, GWRPM25 DOUBLE NOT NULL)`,
	); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurements VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, m := range records {
		if _, err := stmt.ExecContext(ctx, m.Lat, m.Lon, m.PM25); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Insertion order is file order.
	exportQuery := fmt.Sprintf(`
		COPY measurements TO %s (
			FORMAT PARQUET,
			COMPRESSION 'ZSTD',
			ROW_GROUP_SIZE 100000
		)`, quoteLiteral(path))
	if _, err := conn.ExecContext(ctx, exportQuery); err != nil {
		return fmt.Errorf("export parquet: %w", err)
	}
	return nil
}
