package controller

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/modules/airquality/views"
	"airquality-server/internal/utils"
)

const dashboardSampleSize = 20

func (c *airQualityControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		slog.Error("dashboard: measurement store unavailable")
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}

	entries := c.repository.GetAll()
	sample := entries
	if len(sample) > dashboardSampleSize {
		sample = sample[:dashboardSampleSize]
	}
	data := &views.DashboardData{
		Stats:  c.repository.Stats(),
		Sample: sample,
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("dashboard: write response failed", "error", err)
	}
}

// handleList returns every measurement with its id.
//
// @Summary List measurements
// @Produce json
// @Success 200 {array} types.Entry
// @Failure 500 {string} string "Internal error"
// @Router /data [get]
func (c *airQualityControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		writeStoreUnavailable(w, "list")
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.repository.GetAll())
}

// @Summary Get a measurement
// @Produce json
// @Param id path int true "Measurement ID"
// @Success 200 {object} types.Datum
// @Failure 404 {string} string "Item not found"
// @Router /data/{id} [get]
func (c *airQualityControllerImpl) handleGet(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		writeStoreUnavailable(w, "get")
		return
	}
	id, ok := parseID(r)
	if !ok {
		utils.WriteText(w, http.StatusNotFound, msgItemNotFound)
		return
	}
	m, ok := c.repository.GetByID(id)
	if !ok {
		utils.WriteText(w, http.StatusNotFound, msgItemNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, types.NewDatum(m))
}

// @Summary Create a measurement
// @Accept json
// @Produce plain
// @Param entry body types.EntryRequest true "lat, lon and gwrpm25 as numbers or numeric strings"
// @Success 201 {string} string "success new entry id: {id}"
// @Failure 400 {object} map[string]string
// @Router /data [post]
func (c *airQualityControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	m, err := decodeEntry(r)
	if err != nil {
		writeDecodeError(w, "create", err, msgInvalidEntry)
		return
	}
	if c.repository == nil {
		writeStoreUnavailable(w, "create")
		return
	}
	id := c.repository.Insert(m)
	metrics.SetStoreRecords(c.repository.Count())
	slog.Info("measurement created", "id", id)
	utils.WriteText(w, http.StatusCreated, fmt.Sprintf("success new entry id: %d", id))
}

// @Summary Update a measurement
// @Accept json
// @Produce json
// @Param id path int true "Measurement ID"
// @Param entry body types.EntryRequest true "lat, lon and gwrpm25"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /data/{id} [put]
func (c *airQualityControllerImpl) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		writeStoreUnavailable(w, "update")
		return
	}
	id, ok := parseID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("Entry with ID %s not found.", chi.URLParam(r, "id")))
		return
	}
	if _, ok := c.repository.GetByID(id); !ok {
		utils.WriteError(w, http.StatusNotFound, entryNotFound(id))
		return
	}
	m, err := decodeEntry(r)
	if err != nil {
		writeDecodeError(w, "update", err, msgInvalidEntry)
		return
	}
	c.repository.Replace(id, m)
	slog.Info("measurement updated", "id", id)
	writeStatus(w, fmt.Sprintf("Entry with ID %d updated successfully.", id))
}

// @Summary Delete a measurement
// @Produce json
// @Param id path int true "Measurement ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /data/{id} [delete]
func (c *airQualityControllerImpl) handleDelete(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		writeStoreUnavailable(w, "delete")
		return
	}
	id, ok := parseID(r)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("Entry with ID %s not found.", chi.URLParam(r, "id")))
		return
	}
	if _, ok := c.repository.GetByID(id); !ok {
		utils.WriteError(w, http.StatusNotFound, entryNotFound(id))
		return
	}
	c.repository.Delete(id)
	metrics.SetStoreRecords(c.repository.Count())
	slog.Info("measurement deleted", "id", id)
	writeStatus(w, fmt.Sprintf("Entry with ID %d deleted successfully.", id))
}

// @Summary Filter measurements by coordinates
// @Produce json
// @Param lat path number true "Latitude"
// @Param lon path number true "Longitude"
// @Success 200 {array} types.Entry
// @Failure 400 {object} map[string]string
// @Router /data/filter/{lat}/{lon} [get]
func (c *airQualityControllerImpl) handleFilter(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		writeDecodeError(w, "filter", err, msgInvalidCoords)
		return
	}
	if c.repository == nil {
		writeStoreUnavailable(w, "filter")
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.repository.Filter(lat, lon))
}

// @Summary PM2.5 statistics
// @Produce json
// @Success 200 {object} types.Stats
// @Router /data/stats [get]
func (c *airQualityControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	if c.repository == nil {
		writeStoreUnavailable(w, "stats")
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.repository.Stats())
}
