package config

import "time"

type Receiver struct {
	Common
	MQTT      MQTT
	MQTTTopic string
	HTTPAddr  string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
}

// LoadReceiver reads the uplink receiver configuration from the environment.
func LoadReceiver() (Receiver, error) {
	common, err := loadCommon()
	if err != nil {
		return Receiver{}, err
	}

	mqtt, err := loadMQTT("picolink-receiver")
	if err != nil {
		return Receiver{}, err
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Receiver{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Receiver{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Receiver{}, err
	}

	return Receiver{
		Common:                common,
		MQTT:                  mqtt,
		MQTTTopic:             envOr("MQTT_TOPIC", "uplink/+/payload"),
		HTTPAddr:              envOr("HTTP_ADDR", ":8080"),
		SQLiteDriver:          envOr("DB_DRIVER", "sqlite3"),
		SQLiteDSN:             envOr("DB_DSN", ""),
		SQLitePath:            envOr("SQLITE_PATH", "../dev/sqlite/picolink.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
	}, nil
}
