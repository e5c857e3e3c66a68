// Command pm25tool prepares snapshots for the server and feeds it over MQTT.
//
//	pm25tool migrate -db pm25.db
//	pm25tool convert -in grid.nc -out pm25_data_final.parquet
//	pm25tool publish -lat 44.355 -lon 176.255005 -pm25 6.2
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airquality-server/internal/config"
	"airquality-server/internal/db"
	"airquality-server/internal/logging"
	"airquality-server/internal/migrate"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/mqtt"
	"airquality-server/internal/snapshot"
)

const (
	appName = "pm25tool"
	version = "dev"
	usage   = `usage: pm25tool <command> [flags]
  migrate  apply the embedded schema to a SQLite snapshot
  convert  convert a NetCDF grid into a parquet or SQLite snapshot
  publish  publish one measurement to the MQTT topic
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	logger, closeLog, err := logging.New(cfg, version, appName)
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "migrate":
		err = runMigrate(ctx, cfg, args[1:], stderr)
	case "convert":
		err = runConvert(ctx, cfg, args[1:], stderr)
	case "publish":
		err = runPublish(ctx, cfg, args[1:], stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func runMigrate(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	conn, err := db.Open(*dbPath, db.Options{LogSQL: cfg.SQLLog, Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	n, err := migrate.Run(ctx, conn)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "db", *dbPath, "count", n)
	return nil
}

func runConvert(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "NetCDF grid path")
	out := fs.String("out", "", "snapshot path (.parquet or .db)")
	varName := fs.String("var", snapshot.DefaultGridVariable, "pm25 grid variable")
	format := fs.String("format", "", "snapshot format override (parquet, sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("-in and -out are required")
	}

	outFormat, err := snapshot.DetectFormat(*out, *format)
	if err != nil {
		return err
	}

	start := time.Now()
	records, err := snapshot.ReadGrid(ctx, *in, *varName)
	if err != nil {
		return err
	}
	slog.Info("grid read", "in", *in, "variable", *varName, "records", len(records), "took", time.Since(start))

	return snapshot.Write(ctx, *out, outFormat, records, snapshot.Options{LogSQL: cfg.SQLLog, Logger: slog.Default()})
}

func runPublish(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.String("lat", "", "latitude")
	lon := fs.String("lon", "", "longitude")
	pm25 := fs.String("pm25", "", "GWRPM25 value")
	timeout := fs.Duration("timeout", 5*time.Second, "broker connect timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := parseMeasurement(*lat, *lon, *pm25)
	if err != nil {
		return err
	}

	opts := mqtt.OptionsFromConfig(cfg)
	opts.ClientID += "-publisher"
	publisher := mqtt.NewPublisher(opts, slog.Default())
	defer publisher.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := publisher.Connect(connectCtx); err != nil {
		return err
	}
	return publisher.PublishMeasurement(m)
}

func parseMeasurement(lat, lon, pm25 string) (types.Measurement, error) {
	var m types.Measurement
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"lat", lat, &m.Lat},
		{"lon", lon, &m.Lon},
		{"pm25", pm25, &m.PM25},
	} {
		if f.raw == "" {
			return types.Measurement{}, fmt.Errorf("-%s is required", f.name)
		}
		v, err := types.ParseFloat(f.raw)
		if err != nil {
			return types.Measurement{}, fmt.Errorf("-%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return m, nil
}
