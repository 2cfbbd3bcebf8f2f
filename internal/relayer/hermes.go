// Package relayer renders the relayer configuration and runs the relayer for
// the duration of a scoped window, either as a local process or as a
// Kubernetes deployment.
package relayer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
	"time"

	"cosmossdk.io/math"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"
)

// HermesConfig is the content of a relayer config.toml
type HermesConfig struct {
	LogLevel  string
	Mode      ModeConfig
	Telemetry TelemetryConfig
	Chains    []HermesChain
}

// ModeConfig holds the relaying mode switches
type ModeConfig struct {
	ClientsEnabled      bool
	ClientsRefresh      bool
	ClientsMisbehaviour bool
	PacketsEnabled      bool
	// ClearInterval of zero disables periodic packet clearing
	ClearInterval uint64
	ClearOnStart  bool
}

// TelemetryConfig configures the relayer's prometheus endpoint
type TelemetryConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// HermesChain is one [[chains]] entry
type HermesChain struct {
	ID             string
	Type           string
	RPCAddr        string
	GRPCAddr       string
	EventSourceURL string
	AccountPrefix  string
	KeyName        string
	StorePrefix    string
	ClockDrift     time.Duration
	MaxBlockTime   time.Duration
	TrustingPeriod *time.Duration
	// zero means the relayer default
	TrustThreshold   ibctm.Fraction
	GasPrice         math.LegacyDec
	GasDenom         string
	GasMultiplier    float64
	DynamicGasPrice  DynamicGasPrice
	CCVConsumerChain bool
}

// DynamicGasPrice is the congestion-following price band of a chain. The
// relayer reads only the upper multiplier and the absolute cap, rendered as
// multiplier and max; LowMultiplier is used by the local estimator.
type DynamicGasPrice struct {
	Enabled        bool
	LowMultiplier  float64
	HighMultiplier float64
	Max            float64
}

const hermesTemplate = `[global]
log_level = '{{ .LogLevel }}'

[mode.clients]
enabled = {{ .Mode.ClientsEnabled }}
refresh = {{ .Mode.ClientsRefresh }}
misbehaviour = {{ .Mode.ClientsMisbehaviour }}

[mode.connections]
enabled = true

[mode.channels]
enabled = true

[mode.packets]
enabled = {{ .Mode.PacketsEnabled }}
clear_interval = {{ .Mode.ClearInterval }}
clear_on_start = {{ .Mode.ClearOnStart }}
tx_confirmation = false

[telemetry]
enabled = {{ .Telemetry.Enabled }}
host = '{{ .Telemetry.Host }}'
port = {{ .Telemetry.Port }}
{{ range .Chains }}
[[chains]]
id = '{{ .ID }}'
type = '{{ .Type }}'
rpc_addr = '{{ .RPCAddr }}'
grpc_addr = '{{ .GRPCAddr }}'
event_source = { mode = 'push', url = '{{ .EventSourceURL }}', batch_delay = '200ms' }
rpc_timeout = '30s'
account_prefix = '{{ .AccountPrefix }}'
key_name = '{{ .KeyName }}'
store_prefix = '{{ .StorePrefix }}'
gas_price = { price = {{ dec .GasPrice }}, denom = '{{ .GasDenom }}' }
{{- if .GasMultiplier }}
gas_multiplier = {{ float .GasMultiplier }}
{{- end }}
dynamic_gas_price = { enabled = {{ .DynamicGasPrice.Enabled }}, multiplier = {{ float .DynamicGasPrice.HighMultiplier }}, max = {{ float .DynamicGasPrice.Max }} }
max_gas = 3000000
max_msg_num = 30
max_tx_size = 2097152
clock_drift = '{{ duration .ClockDrift }}'
max_block_time = '{{ duration .MaxBlockTime }}'
{{- if .TrustingPeriod }}
trusting_period = '{{ duration (deref .TrustingPeriod) }}'
{{- end }}
{{- if .TrustThreshold.Denominator }}
trust_threshold = { numerator = '{{ .TrustThreshold.Numerator }}', denominator = '{{ .TrustThreshold.Denominator }}' }
{{- end }}
address_type = { derivation = 'cosmos' }
ccv_consumer_chain = {{ .CCVConsumerChain }}
{{ end -}}
`

var hermesTmpl = template.Must(template.New("hermes-config").Funcs(template.FuncMap{
	"duration": FormatDuration,
	"deref":    func(d *time.Duration) time.Duration { return *d },
	"float":    func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
	"dec":      formatDec,
}).Parse(hermesTemplate))

// RenderConfig renders cfg as TOML.
func RenderConfig(cfg HermesConfig) ([]byte, error) {
	for _, c := range cfg.Chains {
		if c.ID == "" {
			return nil, fmt.Errorf("chain entry without id")
		}
		if c.GasPrice.IsNil() {
			return nil, fmt.Errorf("chain %s: gas price is not set", c.ID)
		}
	}

	var buf bytes.Buffer
	if err := hermesTmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfig renders cfg into dir/config.toml and returns the file path.
func WriteConfig(dir string, cfg HermesConfig) (string, error) {
	data, err := RenderConfig(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create relayer config directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configPath, nil
}

// FormatDuration renders d in whole seconds, or milliseconds when d is not a
// whole number of seconds, e.g. '24s', '120000s', '200ms'.
func FormatDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

// formatDec renders a decimal without trailing zeros, as TOML expects a float
func formatDec(d math.LegacyDec) string {
	s := d.String()
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s += "0"
	}
	return s
}
