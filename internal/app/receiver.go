package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"picolink/internal/config"
	"picolink/internal/db"
	"picolink/internal/httpapi"
	"picolink/internal/migrate"
	"picolink/internal/receiver"
	"picolink/internal/repository"
)

// RunReceiver opens and migrates the database, subscribes to node uplinks
// and serves the HTTP API until ctx is done.
func RunReceiver(ctx context.Context, cfg config.Receiver) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttBroker", cfg.MQTT.Broker,
		"mqttPort", cfg.MQTT.Port,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn); err != nil {
		return err
	}
	slog.Info("database ready")

	repo := repository.NewRepository(dbConn)

	sub := receiver.NewSubscriber(receiver.Options{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTTTopic,
	}, slog.Default())
	// The handler must be in place before the subscription goes live.
	sub.SetMessageHandler(receiver.StoreHandler(repo, slog.Default()))

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = sub.Connect(connectCtx)
	connectCancel()
	if err != nil {
		// /healthz keeps working and reports mqtt as disconnected.
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	mux := httpapi.NewMux(dbConn, repo, sub)
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		sub.Disconnect()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("mqtt disconnecting")
	sub.Disconnect()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	received, rejected := sub.Stats()
	slog.Info("receiver stopped", "uplinks_received", received, "uplinks_rejected", rejected)
	return ctx.Err()
}
