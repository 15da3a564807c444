package types

import "time"

// Device is a sensor node that has delivered at least one payload.
type Device struct {
	ID        string    `json:"id"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Reading is one decoded triplet as stored by the receiver. Slot is the
// triplet position inside its payload, oldest group first.
type Reading struct {
	DeviceID    string    `json:"deviceId"`
	PayloadID   int64     `json:"payloadId"`
	Slot        int       `json:"slot"`
	ReceivedAt  time.Time `json:"receivedAt"`
	HeatIndexC  float64   `json:"heatIndexC"`
	HumidityPct int       `json:"humidityPct"`
	PayloadHex  string    `json:"payloadHex"`
}
