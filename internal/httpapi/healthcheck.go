package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	repository repository.MeasurementRepository
}

type healthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

func NewHealthchecker(repository repository.MeasurementRepository) healthchecker {
	return &healthcheckerImpl{repository: repository}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.repository == nil {
		slog.Error("healthcheck: measurement store unavailable")
		utils.WriteError(w, http.StatusInternalServerError, "measurement store unavailable")
		return
	}
	utils.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Records: h.repository.Count()})
}

func registerHealthcheck(r chi.Router, repository repository.MeasurementRepository) {
	healthchecker := NewHealthchecker(repository)
	r.Get("/healthz", healthchecker.handleHealthz)
}
