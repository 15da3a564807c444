// Package httpapi serves the receiver's health check and stored readings.
package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

func NewMux(db *sql.DB, store ReadingsStore, mqtt ConnectionState) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, mqtt)
	(&devicesController{store: store}).RegisterRoutes(mux)
	return mux
}

func NewServer(addr string, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           requestLogger(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
