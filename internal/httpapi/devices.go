package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"picolink/internal/types"
	"picolink/internal/utils"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

// ReadingsStore is the read side of the uplink repository.
type ReadingsStore interface {
	GetDevices(ctx context.Context) ([]types.Device, error)
	GetLatestReadings(ctx context.Context, deviceID string, limit int) ([]types.Reading, error)
}

type devicesController struct {
	store ReadingsStore
}

func (c *devicesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", c.handleDevices)
	mux.HandleFunc("GET /api/devices/{id}/readings", c.handleReadings)
}

func (c *devicesController) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := c.store.GetDevices(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if devices == nil {
		devices = []types.Device{}
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

func (c *devicesController) handleReadings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing device id")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.store.GetLatestReadings(r.Context(), id, limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultReadingsLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxReadingsLimit {
		return 0, errors.New("'limit' must be <= 1000")
	}
	return n, nil
}
