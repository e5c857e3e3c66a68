package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"airquality-server/internal/config"
	httpapi "airquality-server/internal/httpapi"
	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/modules/airquality/views"
	"airquality-server/internal/mqtt"
	"airquality-server/internal/snapshot"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"logFile", cfg.LogFile,
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"datasetPath", cfg.DatasetPath,
		"datasetFormat", cfg.DatasetFormat,
		"datasetWatch", cfg.DatasetWatch,
		"corsOrigins", cfg.CORSOrigins,
		"rateLimitRequests", cfg.RateLimitRequests,
		"rateLimitWindow", cfg.RateLimitWindow,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	format, err := snapshot.DetectFormat(cfg.DatasetPath, cfg.DatasetFormat)
	if err != nil {
		return err
	}
	snapshotOpts := snapshot.Options{LogSQL: cfg.SQLLog, Logger: slog.Default()}
	records, err := snapshot.Load(ctx, cfg.DatasetPath, format, snapshotOpts)
	if err != nil {
		return err
	}
	repo := repository.NewRepository(records)
	metrics.SetStoreRecords(repo.Count())

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	// The handler must be set before Connect: the broker may deliver queued
	// messages right after CONNACK.
	var subscriber *mqtt.Subscriber
	var feature mqtt.MQTTSubscriber
	if cfg.MQTTEnabled {
		subscriber = mqtt.NewSubscriber(mqtt.OptionsFromConfig(cfg), slog.Default())
		feature = subscriber
	}

	var svc *service.Service
	router := httpapi.NewRouter(cfg, repo, func(r chi.Router) {
		svc = airquality.RegisterFeature(r, repo, feature, slog.Default())
	})

	if subscriber != nil {
		// Short timeout so startup does not block when the broker is down.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	watchDone := make(chan struct{})
	if cfg.DatasetWatch {
		go func() {
			defer close(watchDone)
			if err := snapshot.Watch(ctx, cfg.DatasetPath, format, snapshotOpts, svc.Reload); err != nil {
				slog.Error("snapshot watch stopped", "path", cfg.DatasetPath, "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	srv := httpapi.NewServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if subscriber != nil {
			subscriber.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-watchDone

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
