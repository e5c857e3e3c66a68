package service

import (
	"log/slog"

	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/mqtt"
)

// Service feeds the store from outside HTTP: MQTT messages and snapshot reloads.
type Service struct {
	repository repository.MeasurementRepository
	logger     *slog.Logger
}

func NewService(repository repository.MeasurementRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repository, logger: logger}
}

func (s *Service) Register(subscriber mqtt.MQTTSubscriber) {
	registerMQTTHandler(subscriber, s.repository, s.logger)
}

// Reload replaces the whole table with records. Ids restart at 0.
func (s *Service) Reload(records []types.Measurement) {
	s.repository.Reset(records)
	metrics.SetStoreRecords(len(records))
	s.logger.Info("measurement store reloaded", "records", len(records))
}
