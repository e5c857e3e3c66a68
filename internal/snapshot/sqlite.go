package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"airquality-server/internal/db"
	"airquality-server/internal/migrate"
	"airquality-server/internal/modules/airquality/types"
)

const (
	selectMeasurementsSQL = `SELECT lat, lon, gwrpm25 FROM measurements WHERE gwrpm25 IS NOT NULL ORDER BY id`
	deleteMeasurementsSQL = `DELETE FROM measurements`
	insertMeasurementSQL  = `INSERT INTO measurements (id, lat, lon, gwrpm25) VALUES (?, ?, ?, ?)`
)

func loadSQLite(ctx context.Context, path string, opts Options) ([]types.Measurement, error) {
	conn, err := db.Open(path, db.Options{ReadOnly: true, LogSQL: opts.LogSQL, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close(conn) }()

	rows, err := conn.QueryContext(ctx, selectMeasurementsSQL)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []types.Measurement{}
	for rows.Next() {
		var (
			m    types.Measurement
			pm25 sql.NullFloat64
		)
		if err := rows.Scan(&m.Lat, &m.Lon, &pm25); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		if !pm25.Valid || math.IsNaN(pm25.Float64) {
			continue
		}
		m.PM25 = pm25.Float64
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return records, nil
}

func writeSQLite(ctx context.Context, path string, records []types.Measurement, opts Options) error {
	conn, err := db.Open(path, db.Options{LogSQL: opts.LogSQL, Logger: opts.Logger})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	if _, err := migrate.Run(ctx, conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteMeasurementsSQL); err != nil {
		return fmt.Errorf("clear measurements: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, m := range records {
		if _, err := stmt.ExecContext(ctx, id, m.Lat, m.Lon, m.PM25); err != nil {
			return fmt.Errorf("insert measurement %d: %w", id, err)
		}
	}
	return tx.Commit()
}
