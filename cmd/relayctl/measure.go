package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/config"
	"github.com/MoonbridgeInc/hermes/internal/constants"
	"github.com/MoonbridgeInc/hermes/internal/harness"
	"github.com/MoonbridgeInc/hermes/internal/relayer"
)

const (
	flagSource       = "source"
	flagDest         = "dest"
	flagPort         = "port"
	flagChannel      = "channel"
	flagDestChannel  = "dest-channel"
	flagAmount       = "amount"
	flagDenom        = "denom"
	flagReceiver     = "receiver"
	flagMemoSize     = "memo-size"
	flagCompare      = "compare"
	defaultPort      = "transfer"
	defaultChannelID = "channel-0"
)

// measureParams are the flags of one measure invocation
type measureParams struct {
	port        string
	channel     string
	destChannel string
	amount      math.Int
	denom       string
	receiver    string
	memoSize    int
}

// newMeasureCmd returns a command measuring the fee a relayer pays to relay
// a transfer
func newMeasureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Measure the fee the relayer pays to relay a transfer",
		Long: `Submits an ICS-20 transfer on the source chain, runs the relayer until the
transfer is received on the destination chain, and reports how much the
relayer account on the destination paid.

With --compare two transfers are measured: one carrying a large memo, then a
plain one. Under dynamic gas pricing on the destination the first must be
cheaper, under static pricing the second. Inconclusive pairs are re-measured up
to harness.compare_attempts times.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			params, err := parseMeasureParams(cmd, a.cfg.Harness)
			if err != nil {
				return err
			}

			sourceID, _ := cmd.Flags().GetString(flagSource)
			destID, _ := cmd.Flags().GetString(flagDest)
			source, err := a.connect(sourceID)
			if err != nil {
				return err
			}
			dest, err := a.connect(destID)
			if err != nil {
				return err
			}
			if source.address == "" {
				return fmt.Errorf("chain %s: key_name is required to submit transfers", source.cfg.ID)
			}
			if dest.address == "" {
				return fmt.Errorf("chain %s: key_name is required to identify the relayer account", dest.cfg.ID)
			}
			if params.denom == "" {
				params.denom = source.cfg.GasDenom
			}

			sup, cleanup, err := newSupervisor(a, source.cfg.ID, dest.cfg.ID)
			if err != nil {
				return err
			}
			defer cleanup()

			h := harness.New(a.logger, sup, a.metrics)
			h.SettleAttempts = a.cfg.Harness.SettleAttempts
			h.PollDelay = a.cfg.Harness.PollInterval
			h.SettleDelay = a.cfg.Harness.SettleDelay

			run := measurement{harness: h, source: source, dest: dest, params: params}

			compare, _ := cmd.Flags().GetBool(flagCompare)
			if !compare {
				m, err := run.measure(cmd.Context(), harness.LargeMemo(params.memoSize))
				if err != nil {
					return err
				}
				writeLine(cmd, "%s", m)
				return nil
			}

			want := harness.ExpectationFor(dest.cfg.GasPolicy().Enabled)
			first, second, err := harness.CompareWithRerun(cmd.Context(), a.logger, a.cfg.Harness.CompareAttempts, want,
				func(ctx context.Context) (harness.FeeMeasurement, harness.FeeMeasurement, error) {
					withMemo, err := run.measure(ctx, harness.LargeMemo(params.memoSize))
					if err != nil {
						return harness.FeeMeasurement{}, harness.FeeMeasurement{}, err
					}
					plain, err := run.measure(ctx, "")
					return withMemo, plain, err
				})
			writeLine(cmd, "memo transfer:  %s", first)
			writeLine(cmd, "plain transfer: %s", second)
			if err != nil {
				return err
			}
			writeLine(cmd, "ordering holds: %s", want)
			return nil
		},
	}

	cmd.Flags().String(flagSource, "", "chain the transfer is submitted on")
	cmd.Flags().String(flagDest, "", "chain receiving the transfer, whose relayer account is measured")
	cmd.Flags().String(flagPort, defaultPort, "source port")
	cmd.Flags().String(flagChannel, defaultChannelID, "source channel")
	cmd.Flags().String(flagDestChannel, defaultChannelID, "counterparty channel on the destination, used to derive the voucher denom")
	cmd.Flags().String(flagAmount, "12345", "amount to transfer")
	cmd.Flags().String(flagDenom, "", "denom to transfer (default: the source gas denom)")
	cmd.Flags().String(flagReceiver, "", "recipient address on the destination chain")
	cmd.Flags().Int(flagMemoSize, -1, "memo size of the measured transfer (default: harness.memo_size)")
	cmd.Flags().Bool(flagCompare, false, "measure a large-memo and a plain transfer and check their fee ordering")
	_ = cmd.MarkFlagRequired(flagSource)
	_ = cmd.MarkFlagRequired(flagDest)
	_ = cmd.MarkFlagRequired(flagReceiver)

	return cmd
}

func parseMeasureParams(cmd *cobra.Command, hc config.HarnessConfig) (measureParams, error) {
	p := measureParams{memoSize: hc.MemoSize}
	p.port, _ = cmd.Flags().GetString(flagPort)
	p.channel, _ = cmd.Flags().GetString(flagChannel)
	p.destChannel, _ = cmd.Flags().GetString(flagDestChannel)
	p.denom, _ = cmd.Flags().GetString(flagDenom)
	p.receiver, _ = cmd.Flags().GetString(flagReceiver)

	s, _ := cmd.Flags().GetString(flagAmount)
	amount, ok := math.NewIntFromString(s)
	if !ok || !amount.IsPositive() {
		return measureParams{}, fmt.Errorf("invalid --%s %q: must be a positive integer", flagAmount, s)
	}
	p.amount = amount

	if size, _ := cmd.Flags().GetInt(flagMemoSize); size >= 0 {
		p.memoSize = size
	}
	return p, nil
}

// measurement measures transfers between a fixed pair of chains
type measurement struct {
	harness *harness.Harness
	source  *connectedChain
	dest    *connectedChain
	params  measureParams
}

// measure relays one transfer carrying memo. The receiver may already hold
// vouchers from earlier runs, so settlement waits for the current balance
// plus the amount.
func (m measurement) measure(ctx context.Context, memo string) (harness.FeeMeasurement, error) {
	destKind := m.dest.chain.Kind()
	voucher, err := harness.DeriveIBCDenom(destKind, m.params.port, m.params.destChannel, m.params.denom)
	if err != nil {
		return harness.FeeMeasurement{}, err
	}

	current, err := m.dest.chain.QueryBalance(ctx, m.params.receiver, voucher)
	if err != nil {
		return harness.FeeMeasurement{}, fmt.Errorf("failed to query receiver balance on %s: %w", m.dest.cfg.ID, err)
	}

	return m.harness.Measure(ctx, harness.TransferRequest{
		Source:      m.source.chain,
		Destination: m.dest.chain,
		Transfer: chain.Transfer{
			SourcePort:       m.params.port,
			SourceChannel:    m.params.channel,
			Sender:           m.source.address,
			Receiver:         m.params.receiver,
			Token:            sdk.NewCoin(m.params.denom, m.params.amount),
			Memo:             memo,
			TimeoutTimestamp: uint64(time.Now().Add(constants.DefaultTransferTimeout).UnixNano()),
		},
		FeeChain:       m.dest.chain,
		Payer:          m.dest.address,
		FeeDenom:       m.dest.cfg.GasDenom,
		Recipient:      m.params.receiver,
		ExpectedDenom:  voucher,
		ExpectedAmount: current.Add(m.params.amount),
	})
}

// newSupervisor builds the relayer supervisor configured in [harness] for a
// relayer serving the two chains. The returned cleanup removes temporary files.
func newSupervisor(a *app, sourceID, destID string) (relayer.Supervisor, func(), error) {
	hermesCfg, err := a.cfg.HermesConfig(sourceID, destID)
	if err != nil {
		return nil, nil, err
	}
	hc := a.cfg.Harness

	switch hc.Supervisor {
	case config.SupervisorKubernetes:
		data, err := relayer.RenderConfig(hermesCfg)
		if err != nil {
			return nil, nil, err
		}
		clientset, err := newKubernetesClientset(hc.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		instance := strings.ToLower(sourceID + "-" + destID)
		sup := relayer.NewK8sSupervisor(a.logger, clientset, hc.Namespace, instance, data)
		sup.Image = hc.Image
		if a.cfg.Telemetry.Enabled {
			sup.TelemetryPort = int32(a.cfg.Telemetry.Port)
		}
		return sup, func() {}, nil

	default:
		dir := hc.RelayerConfigDir
		cleanup := func() {}
		if dir == "" {
			dir, err = os.MkdirTemp("", "relayctl-")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create relayer config directory: %w", err)
			}
			tmp := dir
			cleanup = func() { os.RemoveAll(tmp) }
		}
		path, err := relayer.WriteConfig(dir, hermesCfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return relayer.NewProcessSupervisor(a.logger, hc.RelayerBinary, path), cleanup, nil
	}
}

// newKubernetesClientset tries the in-cluster config first, then kubeconfig
func newKubernetesClientset(kubeconfig string) (kubernetes.Interface, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfig == "" {
			kubeconfig = clientcmd.RecommendedHomeFile
		}
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	return clientset, nil
}
