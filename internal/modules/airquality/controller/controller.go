package controller

import (
	"github.com/go-chi/chi/v5"

	"airquality-server/internal/modules/airquality/repository"
)

type AirQualityController interface {
	RegisterRoutes(r chi.Router)
}

type airQualityControllerImpl struct {
	repository repository.MeasurementRepository
}

// NewAirQualityController wires handlers to the store. A nil repository is
// accepted; data routes then answer 500.
func NewAirQualityController(repository repository.MeasurementRepository) AirQualityController {
	return &airQualityControllerImpl{repository: repository}
}

func (c *airQualityControllerImpl) RegisterRoutes(r chi.Router) {
	r.Get("/", c.handleDashboard)

	r.Get("/data", c.handleList)
	r.Post("/data", c.handleCreate)
	r.Get("/data/stats", c.handleStats)
	r.Get("/data/filter/{lat}/{lon}", c.handleFilter)
	r.Get("/data/{id:[0-9]+}", c.handleGet)
	r.Put("/data/{id:[0-9]+}", c.handleUpdate)
	r.Delete("/data/{id:[0-9]+}", c.handleDelete)
}
