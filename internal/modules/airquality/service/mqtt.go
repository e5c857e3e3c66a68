package service

import (
	"log/slog"

	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/mqtt"
)

// registerMQTTHandler stores every valid measurement message as a new entry.
func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, repo repository.MeasurementRepository, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(m types.Measurement) error {
		id := repo.Insert(m)
		metrics.SetStoreRecords(repo.Count())

		logger.Debug("stored mqtt measurement",
			"id", id,
			"lat", m.Lat,
			"lon", m.Lon,
			"gwrpm25", m.PM25,
		)
		return nil
	})
}
