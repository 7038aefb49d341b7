// Package infra groups the technical adapters behind the core interfaces:
// the SQLite store, the MQTT notifier, the zerolog logger and the Prometheus
// and InfluxDB metrics sinks. Core packages never import anything here; the
// dependency always points inward.
package infra
