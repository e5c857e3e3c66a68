package airquality

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"airquality-server/internal/modules/airquality/controller"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/mqtt"
)

// RegisterFeature mounts the air quality routes on r and, when subscriber is
// non-nil, stores MQTT measurements in repo. The returned service applies
// snapshot reloads.
func RegisterFeature(r chi.Router, repo repository.MeasurementRepository, subscriber mqtt.MQTTSubscriber, logger *slog.Logger) *service.Service {
	airQualityController := controller.NewAirQualityController(repo)
	airQualityController.RegisterRoutes(r)

	svc := service.NewService(repo, logger)
	if subscriber != nil {
		svc.Register(subscriber)
	}
	return svc
}
