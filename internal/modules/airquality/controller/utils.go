package controller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/utils"
)

const (
	maxBodyBytes = 1 << 20

	msgInternalError = "Internal error"
	msgItemNotFound  = "Item not found"
	msgInvalidEntry  = "Invalid input, lat, lon, and gwrpm25 are required and must be floats."
	msgInvalidCoords = "Invalid latitude or longitude format."
)

// parseID reads the {id} route parameter. The route pattern only admits
// digits, so the only failure left is overflow, which no stored id can match.
func parseID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseCoords(r *http.Request) (lat, lon float64, err error) {
	lat, err = types.ParseFloat(chi.URLParam(r, "lat"))
	if err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	lon, err = types.ParseFloat(chi.URLParam(r, "lon"))
	if err != nil {
		return 0, 0, fmt.Errorf("lon: %w", err)
	}
	return lat, lon, nil
}

func decodeEntry(r *http.Request) (types.Measurement, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return types.Measurement{}, fmt.Errorf("%w: read body: %w", types.ErrInvalidInput, err)
	}
	if len(body) > maxBodyBytes {
		return types.Measurement{}, fmt.Errorf("%w: body exceeds %d bytes", types.ErrInvalidInput, maxBodyBytes)
	}
	return types.DecodeMeasurement(body)
}

func entryNotFound(id int) string {
	return fmt.Sprintf("Entry with ID %d not found.", id)
}

func writeStatus(w http.ResponseWriter, message string) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// writeDecodeError answers 400 for client input errors and 500 for anything else.
func writeDecodeError(w http.ResponseWriter, op string, err error, msg string) {
	if errors.Is(err, types.ErrInvalidInput) {
		slog.Debug("rejected input", "op", op, "error", err)
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	slog.Error("decode failed", "op", op, "error", err)
	utils.WriteText(w, http.StatusInternalServerError, msgInternalError)
}

func writeStoreUnavailable(w http.ResponseWriter, op string) {
	slog.Error("measurement store unavailable", "op", op)
	utils.WriteText(w, http.StatusInternalServerError, msgInternalError)
}
