// Package config loads the relayer configuration: a Hermes-style TOML file
// with [[chains]] entries, relayer mode switches, and a [harness] section for
// fee measurements.
package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/constants"
	"github.com/MoonbridgeInc/hermes/internal/gasprice"
	"github.com/MoonbridgeInc/hermes/internal/relayer"
	"github.com/MoonbridgeInc/hermes/internal/safety"
)

// Default configuration constants
const (
	// Default RPC URL for CometBFT
	DefaultRPCURL = "tcp://localhost:26657"

	// Default WebSocket URL for event monitoring
	DefaultWebSocketURL = "ws://localhost:26657/websocket"

	// EnvPrefix is prepended to environment overrides, e.g. RELAYCTL_GLOBAL_LOG_LEVEL
	EnvPrefix = "RELAYCTL"

	// Default bech32 prefixes for Cosmos chains
	DefaultAccountPrefix      = "cosmos"
	DefaultValidatorPrefix    = "cosmosvaloper"
	DefaultConsensusPrefix    = "cosmosvalcons"
	DefaultAccountPubPrefix   = "cosmospub"
	DefaultValidatorPubPrefix = "cosmosvaloperpub"
	DefaultConsensusPubPrefix = "cosmosvalconspub"

	DefaultStorePrefix    = "ibc"
	DefaultKeyringBackend = "test"
	DefaultRelayerBinary  = "hermes"
	DefaultNamespace      = "default"

	SupervisorProcess    = "process"
	SupervisorKubernetes = "kubernetes"
)

// Config is the whole configuration file
type Config struct {
	Global    GlobalConfig    `mapstructure:"global"`
	Mode      ModeConfig      `mapstructure:"mode"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Harness   HarnessConfig   `mapstructure:"harness"`
	Chains    []ChainConfig   `mapstructure:"-"`
}

// GlobalConfig holds the [global] table
type GlobalConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// ModeConfig holds the [mode.*] tables the relayer honors during measurements
type ModeConfig struct {
	Clients struct {
		Enabled      bool `mapstructure:"enabled"`
		Refresh      bool `mapstructure:"refresh"`
		Misbehaviour bool `mapstructure:"misbehaviour"`
	} `mapstructure:"clients"`
	Packets struct {
		Enabled       bool   `mapstructure:"enabled"`
		ClearInterval uint64 `mapstructure:"clear_interval"`
		ClearOnStart  bool   `mapstructure:"clear_on_start"`
	} `mapstructure:"packets"`
}

// TelemetryConfig holds the [telemetry] table
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Validate checks the telemetry endpoint when it is enabled
func (t TelemetryConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.Port < constants.MinUserPort || t.Port > constants.MaxUserPort {
		return fmt.Errorf("telemetry: port %d must be in [%d, %d]", t.Port, constants.MinUserPort, constants.MaxUserPort)
	}
	return nil
}

// HarnessConfig holds the [harness] table. It is not part of the relayer's
// own config and is dropped when rendering config.toml.
type HarnessConfig struct {
	// Supervisor is "process" or "kubernetes"
	Supervisor       string        `mapstructure:"supervisor"`
	RelayerBinary    string        `mapstructure:"relayer_binary"`
	RelayerConfigDir string        `mapstructure:"relayer_config_dir"`
	Namespace        string        `mapstructure:"namespace"`
	Image            string        `mapstructure:"image"`
	Kubeconfig       string        `mapstructure:"kubeconfig"`
	SettleAttempts   int           `mapstructure:"settle_attempts"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	CompareAttempts  int           `mapstructure:"compare_attempts"`
	MemoSize         int           `mapstructure:"memo_size"`
}

// Validate checks the harness settings
func (h HarnessConfig) Validate() error {
	if h.Supervisor != SupervisorProcess && h.Supervisor != SupervisorKubernetes {
		return fmt.Errorf("harness: supervisor must be %q or %q, got %q", SupervisorProcess, SupervisorKubernetes, h.Supervisor)
	}
	if h.SettleAttempts < 1 {
		return fmt.Errorf("harness: settle_attempts must be at least 1, got %d", h.SettleAttempts)
	}
	if h.PollInterval <= 0 {
		return fmt.Errorf("harness: poll_interval must be positive, got %s", h.PollInterval)
	}
	if h.SettleDelay < 0 {
		return fmt.Errorf("harness: settle_delay must not be negative, got %s", h.SettleDelay)
	}
	if h.CompareAttempts < 1 {
		return fmt.Errorf("harness: compare_attempts must be at least 1, got %d", h.CompareAttempts)
	}
	if h.MemoSize < 0 {
		return fmt.Errorf("harness: memo_size must not be negative, got %d", h.MemoSize)
	}
	return nil
}

// ChainConfig is one [[chains]] entry with defaults applied
type ChainConfig struct {
	ID             string
	Type           string
	RPCAddr        string
	GRPCAddr       string
	EventSourceURL string
	AccountPrefix  string
	KeyName        string
	KeyringBackend string
	Home           string
	StorePrefix    string

	ClockDrift     time.Duration
	MaxBlockTime   time.Duration
	TrustingPeriod *time.Duration
	// zero means the default threshold
	TrustThreshold ibctm.Fraction

	GasPrice        math.LegacyDec
	GasDenom        string
	GasMultiplier   float64
	DynamicGasPrice relayer.DynamicGasPrice

	CCVConsumerChain bool
}

// rawChain mirrors a [[chains]] entry as written. Pointers tell unset keys
// apart from explicit zero values.
type rawChain struct {
	ID             string         `mapstructure:"id"`
	Type           string         `mapstructure:"type"`
	RPCAddr        string         `mapstructure:"rpc_addr"`
	GRPCAddr       string         `mapstructure:"grpc_addr"`
	EventSource    rawEventSource `mapstructure:"event_source"`
	AccountPrefix  string         `mapstructure:"account_prefix"`
	KeyName        string         `mapstructure:"key_name"`
	KeyringBackend string         `mapstructure:"keyring_backend"`
	Home           string         `mapstructure:"home"`
	StorePrefix    string         `mapstructure:"store_prefix"`

	ClockDrift     *time.Duration     `mapstructure:"clock_drift"`
	MaxBlockTime   *time.Duration     `mapstructure:"max_block_time"`
	TrustingPeriod *time.Duration     `mapstructure:"trusting_period"`
	TrustThreshold *rawTrustThreshold `mapstructure:"trust_threshold"`

	GasPrice        *rawGasPrice        `mapstructure:"gas_price"`
	GasMultiplier   *float64            `mapstructure:"gas_multiplier"`
	DynamicGasPrice *rawDynamicGasPrice `mapstructure:"dynamic_gas_price"`

	CCVConsumerChain bool `mapstructure:"ccv_consumer_chain"`
}

type rawEventSource struct {
	Mode string `mapstructure:"mode"`
	URL  string `mapstructure:"url"`
}

// numerator and denominator are quoted strings in config.toml
type rawTrustThreshold struct {
	Numerator   uint64 `mapstructure:"numerator"`
	Denominator uint64 `mapstructure:"denominator"`
}

type rawGasPrice struct {
	Price float64 `mapstructure:"price"`
	Denom string  `mapstructure:"denom"`
}

// multiplier and max are the keys the relayer reads; high_multiplier takes
// precedence over multiplier when both are set
type rawDynamicGasPrice struct {
	Enabled        bool     `mapstructure:"enabled"`
	LowMultiplier  *float64 `mapstructure:"low_multiplier"`
	HighMultiplier *float64 `mapstructure:"high_multiplier"`
	Multiplier     *float64 `mapstructure:"multiplier"`
	Max            *float64 `mapstructure:"max"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", "info")

	v.SetDefault("mode.clients.enabled", true)
	v.SetDefault("mode.clients.refresh", false)
	v.SetDefault("mode.clients.misbehaviour", false)
	v.SetDefault("mode.packets.enabled", true)
	v.SetDefault("mode.packets.clear_interval", 0)
	v.SetDefault("mode.packets.clear_on_start", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.host", "127.0.0.1")
	v.SetDefault("telemetry.port", constants.DefaultTelemetryPort)

	v.SetDefault("harness.supervisor", SupervisorProcess)
	v.SetDefault("harness.relayer_binary", DefaultRelayerBinary)
	v.SetDefault("harness.relayer_config_dir", "")
	v.SetDefault("harness.namespace", DefaultNamespace)
	v.SetDefault("harness.image", relayer.DefaultImage)
	v.SetDefault("harness.kubeconfig", "")
	v.SetDefault("harness.settle_attempts", constants.DefaultSettleAttempts)
	v.SetDefault("harness.poll_interval", constants.DefaultPollInterval.String())
	v.SetDefault("harness.settle_delay", constants.DefaultSettleDelay.String())
	v.SetDefault("harness.compare_attempts", 3)
	v.SetDefault("harness.memo_size", 10_000)
}

// NewViper returns a viper instance with defaults and environment overrides
// configured for a TOML config file.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads and validates the config file at path
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return FromViper(v)
}

// LoadFromReader reads and validates a TOML config from r
func LoadFromReader(r io.Reader) (Config, error) {
	v := NewViper()
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return FromViper(v)
}

// FromViper decodes and validates the config held by v
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	var raw []rawChain
	if err := v.UnmarshalKey("chains", &raw, decoderOptions); err != nil {
		return Config{}, fmt.Errorf("failed to decode chains: %w", err)
	}
	for i, rc := range raw {
		c, err := rc.build()
		if err != nil {
			return Config{}, fmt.Errorf("chains[%d]: %w", i, err)
		}
		cfg.Chains = append(cfg.Chains, c)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	dc.WeaklyTypedInput = true
}

func (rc rawChain) build() (ChainConfig, error) {
	c := ChainConfig{
		ID:               rc.ID,
		Type:             rc.Type,
		RPCAddr:          rc.RPCAddr,
		GRPCAddr:         rc.GRPCAddr,
		EventSourceURL:   rc.EventSource.URL,
		AccountPrefix:    rc.AccountPrefix,
		KeyName:          rc.KeyName,
		KeyringBackend:   rc.KeyringBackend,
		Home:             rc.Home,
		StorePrefix:      rc.StorePrefix,
		ClockDrift:       constants.DefaultClockDrift,
		MaxBlockTime:     constants.DefaultMaxBlockTime,
		TrustingPeriod:   rc.TrustingPeriod,
		GasDenom:         constants.DefaultGasDenom,
		GasMultiplier:    constants.DefaultGasMultiplier,
		CCVConsumerChain: rc.CCVConsumerChain,
		DynamicGasPrice: relayer.DynamicGasPrice{
			LowMultiplier:  constants.DefaultLowPriceMultiplier,
			HighMultiplier: constants.DefaultHighPriceMultiplier,
			Max:            constants.DefaultDynamicGasPriceMax,
		},
	}

	if c.Type == "" {
		c.Type = chain.KindCosmosSDK.ConfigName()
	}
	if c.EventSourceURL == "" && c.RPCAddr != "" {
		c.EventSourceURL = ConvertRPCToWebSocketURL(c.RPCAddr)
	}
	if c.AccountPrefix == "" {
		c.AccountPrefix = DefaultAccountPrefix
	}
	if c.StorePrefix == "" {
		c.StorePrefix = DefaultStorePrefix
	}
	if c.KeyringBackend == "" {
		c.KeyringBackend = DefaultKeyringBackend
	}
	if rc.ClockDrift != nil {
		c.ClockDrift = *rc.ClockDrift
	}
	if rc.MaxBlockTime != nil {
		c.MaxBlockTime = *rc.MaxBlockTime
	}
	if rc.TrustThreshold != nil {
		c.TrustThreshold = safety.NewFraction(rc.TrustThreshold.Numerator, rc.TrustThreshold.Denominator)
	}
	if rc.GasMultiplier != nil {
		c.GasMultiplier = *rc.GasMultiplier
	}

	c.GasPrice = math.LegacyMustNewDecFromStr(constants.DefaultGasPrice)
	if rc.GasPrice != nil {
		price, err := decFromFloat(rc.GasPrice.Price)
		if err != nil {
			return ChainConfig{}, fmt.Errorf("chain %s: invalid gas_price.price: %w", rc.ID, err)
		}
		c.GasPrice = price
		if rc.GasPrice.Denom != "" {
			c.GasDenom = rc.GasPrice.Denom
		}
	}

	if d := rc.DynamicGasPrice; d != nil {
		c.DynamicGasPrice.Enabled = d.Enabled
		if d.LowMultiplier != nil {
			c.DynamicGasPrice.LowMultiplier = *d.LowMultiplier
		}
		switch {
		case d.HighMultiplier != nil:
			c.DynamicGasPrice.HighMultiplier = *d.HighMultiplier
		case d.Multiplier != nil:
			c.DynamicGasPrice.HighMultiplier = *d.Multiplier
		}
		if d.Max != nil {
			c.DynamicGasPrice.Max = *d.Max
		}
	}

	return c, nil
}

func decFromFloat(f float64) (math.LegacyDec, error) {
	return math.LegacyNewDecFromStr(strconv.FormatFloat(f, 'f', -1, 64))
}

// Validate checks every chain entry, telemetry and the harness settings
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Chains))
	for _, ch := range c.Chains {
		if _, ok := seen[ch.ID]; ok {
			return fmt.Errorf("duplicate chain id %q", ch.ID)
		}
		seen[ch.ID] = struct{}{}

		if err := ch.Validate(); err != nil {
			return err
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return c.Harness.Validate()
}

// Validate checks a chain entry: its type, safety tolerances and gas policy
func (c ChainConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chain id is required")
	}
	if _, err := c.Kind(); err != nil {
		return fmt.Errorf("chain %s: %w", c.ID, err)
	}
	if err := c.SafetyConfig().Validate(); err != nil {
		return err
	}
	if c.DynamicGasPrice.Max <= 0 {
		return fmt.Errorf("chain %s: dynamic_gas_price.max %v must be positive", c.ID, c.DynamicGasPrice.Max)
	}
	return c.GasPolicy().Validate()
}

// Kind parses the chain type
func (c ChainConfig) Kind() (chain.Kind, error) {
	return chain.ParseKind(c.Type)
}

// SafetyConfig returns the tolerances used to resolve client parameters
func (c ChainConfig) SafetyConfig() safety.ChainSafetyConfig {
	return safety.ChainSafetyConfig{
		ChainID:        c.ID,
		ClockDrift:     c.ClockDrift,
		MaxBlockTime:   c.MaxBlockTime,
		TrustThreshold: c.TrustThreshold,
		TrustingPeriod: c.TrustingPeriod,
	}
}

// GasPolicy returns the pricing policy for transactions on this chain
func (c ChainConfig) GasPolicy() gasprice.Policy {
	return gasprice.Policy{
		ChainID:        c.ID,
		Enabled:        c.DynamicGasPrice.Enabled,
		LowMultiplier:  c.DynamicGasPrice.LowMultiplier,
		HighMultiplier: c.DynamicGasPrice.HighMultiplier,
		StaticPrice:    c.GasPrice,
		Denom:          c.GasDenom,
		GasMultiplier:  c.GasMultiplier,
	}
}

// ChainConfig returns the client factory config
func (c ChainConfig) ChainConfig() (chain.Config, error) {
	kind, err := c.Kind()
	if err != nil {
		return chain.Config{}, fmt.Errorf("chain %s: %w", c.ID, err)
	}
	return chain.Config{
		ChainID:     c.ID,
		Kind:        kind,
		CCVConsumer: c.CCVConsumerChain,
		GasPolicy:   c.GasPolicy(),
	}, nil
}

// Endpoint returns the node address and key used to reach the chain
func (c ChainConfig) Endpoint() chain.Endpoint {
	return chain.Endpoint{
		ChainID:        c.ID,
		RPCAddr:        c.RPCAddr,
		HomeDir:        c.Home,
		KeyringBackend: c.KeyringBackend,
		KeyName:        c.KeyName,
	}
}

// StaticGasPrice returns the configured price as a coin, e.g. 0.3stake
func (c ChainConfig) StaticGasPrice() sdk.DecCoin {
	return sdk.NewDecCoinFromDec(c.GasDenom, c.GasPrice)
}

// HermesChain returns the [[chains]] entry rendered into config.toml
func (c ChainConfig) HermesChain() relayer.HermesChain {
	typ := c.Type
	if kind, err := c.Kind(); err == nil {
		typ = kind.ConfigName()
	}
	return relayer.HermesChain{
		ID:               c.ID,
		Type:             typ,
		RPCAddr:          c.RPCAddr,
		GRPCAddr:         c.GRPCAddr,
		EventSourceURL:   c.EventSourceURL,
		AccountPrefix:    c.AccountPrefix,
		KeyName:          c.KeyName,
		StorePrefix:      c.StorePrefix,
		ClockDrift:       c.ClockDrift,
		MaxBlockTime:     c.MaxBlockTime,
		TrustingPeriod:   c.TrustingPeriod,
		TrustThreshold:   c.TrustThreshold,
		GasPrice:         c.GasPrice,
		GasDenom:         c.GasDenom,
		GasMultiplier:    c.GasMultiplier,
		DynamicGasPrice:  c.DynamicGasPrice,
		CCVConsumerChain: c.CCVConsumerChain,
	}
}

// HermesConfig returns the relayer config for the given chains, or every
// chain when ids is empty.
func (c Config) HermesConfig(ids ...string) (relayer.HermesConfig, error) {
	out := relayer.HermesConfig{
		LogLevel: c.Global.LogLevel,
		Mode: relayer.ModeConfig{
			ClientsEnabled:      c.Mode.Clients.Enabled,
			ClientsRefresh:      c.Mode.Clients.Refresh,
			ClientsMisbehaviour: c.Mode.Clients.Misbehaviour,
			PacketsEnabled:      c.Mode.Packets.Enabled,
			ClearInterval:       c.Mode.Packets.ClearInterval,
			ClearOnStart:        c.Mode.Packets.ClearOnStart,
		},
		Telemetry: relayer.TelemetryConfig{
			Enabled: c.Telemetry.Enabled,
			Host:    c.Telemetry.Host,
			Port:    c.Telemetry.Port,
		},
	}

	if len(ids) == 0 {
		for _, ch := range c.Chains {
			out.Chains = append(out.Chains, ch.HermesChain())
		}
		return out, nil
	}
	for _, id := range ids {
		ch, err := c.Chain(id)
		if err != nil {
			return relayer.HermesConfig{}, err
		}
		out.Chains = append(out.Chains, ch.HermesChain())
	}
	return out, nil
}

// Chain returns the entry with the given id
func (c Config) Chain(id string) (ChainConfig, error) {
	for _, ch := range c.Chains {
		if ch.ID == id {
			return ch, nil
		}
	}
	return ChainConfig{}, fmt.Errorf("chain %q not found in config", id)
}

// ConvertRPCToWebSocketURL converts an RPC URL to a WebSocket URL
func ConvertRPCToWebSocketURL(rpcURL string) string {
	if strings.HasPrefix(rpcURL, "tcp://") {
		return "ws://" + rpcURL[6:] + "/websocket"
	} else if strings.HasPrefix(rpcURL, "http://") {
		return "ws://" + rpcURL[7:] + "/websocket"
	} else if strings.HasPrefix(rpcURL, "https://") {
		return "wss://" + rpcURL[8:] + "/websocket"
	}
	return DefaultWebSocketURL
}

// InitSDKConfig initializes the SDK configuration with default bech32 prefixes
func InitSDKConfig() {
	sdkConfig := sdk.GetConfig()
	sdkConfig.SetBech32PrefixForAccount(DefaultAccountPrefix, DefaultAccountPubPrefix)
	sdkConfig.SetBech32PrefixForValidator(DefaultValidatorPrefix, DefaultValidatorPubPrefix)
	sdkConfig.SetBech32PrefixForConsensusNode(DefaultConsensusPrefix, DefaultConsensusPubPrefix)
	sdkConfig.Seal()
}
