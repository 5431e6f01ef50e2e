// SPDX-License-Identifier: Apache-2.0

// Package constants names the environment variables corint's CLI
// flags fall back to (spec §6).
package constants

const (
	AppName    = "corint"
	AppVersion = "0.1.0"

	EnvLogLevel     = "CORINT_LOG_LEVEL"
	EnvDebug        = "CORINT_DEBUG"
	EnvOtelEnabled  = "CORINT_OTEL_ENABLED"
	EnvOtelEndpoint = "CORINT_OTEL_ENDPOINT"
	EnvOtelProtocol = "CORINT_OTEL_PROTOCOL"
	EnvConfigFile   = "CORINT_CONFIG_FILE"
)
