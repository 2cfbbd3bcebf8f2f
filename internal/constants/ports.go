package constants

// Port constants
const (
	// Valid port range for user applications
	MinUserPort = 1024
	MaxUserPort = 65535

	// Relayer prometheus endpoint
	DefaultTelemetryPort = 3001
)
