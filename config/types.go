package config

// Pauses switches marketplace modules off without a restart of the data dir.
type Pauses struct {
	Market bool `toml:"Market" yaml:"market"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	// Headers uses the OTEL_EXPORTER_OTLP_HEADERS syntax: key=value,key=value.
	Headers string `toml:"Headers" yaml:"headers"`
	Traces  bool   `toml:"Traces" yaml:"traces"`
	Metrics bool   `toml:"Metrics" yaml:"metrics"`
}

// Enabled reports whether any exporter is switched on.
func (t Telemetry) Enabled() bool {
	return t.Traces || t.Metrics
}
