// Package config provides configuration loading and validation for the
// ASR service. It handles YAML-based configuration with struct validation
// covering the listen URI, backend model definitions, recognition limits,
// and the monitoring surfaces.
package config
