package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/config"
	"github.com/MoonbridgeInc/hermes/internal/safety"
)

const (
	flagUnbondingPeriod = "unbonding-period"
	flagTrustingPeriod  = "trusting-period"
	flagTrustThreshold  = "trust-threshold"
	flagMaxClockDrift   = "max-clock-drift"
	flagVerifyClient    = "verify-client"
	flagBothDirections  = "both"
	flagClientState     = "client-state-height"
)

// newResolveCmd returns a command resolving the parameters of a client of one
// chain hosted on another
func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [subject-chain] [host-chain]",
		Short: "Resolve the light client parameters for a client of subject hosted on host",
		Long: `Resolves max_clock_drift, trusting_period and trust_threshold for a client
tracking the subject chain, hosted on the host chain.

The subject chain's unbonding period is queried from its node unless
--unbonding-period is given. With --verify-client the client state stored on the
host chain is read back and compared with the resolved parameters. With
--client-state-height the client state a relayer would create, trusting the
subject chain at that height, is printed as JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			subject, err := a.cfg.Chain(args[0])
			if err != nil {
				return err
			}
			host, err := a.cfg.Chain(args[1])
			if err != nil {
				return err
			}

			opts, err := createOptions(cmd)
			if err != nil {
				return err
			}

			both, _ := cmd.Flags().GetBool(flagBothDirections)
			if both {
				return runResolvePair(cmd, a, subject, host, opts)
			}

			var params safety.EffectiveClientParams
			if unbonding, _ := cmd.Flags().GetDuration(flagUnbondingPeriod); unbonding > 0 {
				params, err = safety.Resolve(subject.SafetyConfig(), host.SafetyConfig(), unbonding, opts)
				a.metrics.ObserveResolution(subject.ID, host.ID, err)
			} else {
				var subjectChain *connectedChain
				subjectChain, err = a.connect(subject.ID)
				if err != nil {
					return err
				}
				params, err = safety.NewResolver(a.logger).WithMetrics(a.metrics).
					Resolve(cmd.Context(), subject.SafetyConfig(), host.SafetyConfig(), subjectChain.chain, opts)
			}
			if err != nil {
				return err
			}

			printParams(cmd, subject.ID, host.ID, params)

			if height, _ := cmd.Flags().GetUint64(flagClientState); height > 0 {
				if err := printClientState(cmd, subject.ID, params, height); err != nil {
					return err
				}
			}

			clientID, _ := cmd.Flags().GetString(flagVerifyClient)
			if clientID == "" {
				return nil
			}
			return verifyClient(cmd, a, host.ID, clientID, params)
		},
	}

	cmd.Flags().Duration(flagUnbondingPeriod, 0, "unbonding period of the subject chain; queried from the node when unset")
	cmd.Flags().String(flagTrustingPeriod, "", "trusting period override, e.g. 14days")
	cmd.Flags().String(flagTrustThreshold, "", "trust threshold override, e.g. 2/3")
	cmd.Flags().String(flagMaxClockDrift, "", "max clock drift override, e.g. 20s")
	cmd.Flags().String(flagVerifyClient, "", "client id on the host chain to check against the resolved parameters")
	cmd.Flags().Bool(flagBothDirections, false, "resolve the clients of both chains on each other")
	cmd.Flags().Uint64(flagClientState, 0, "print the client state to create, trusting the subject chain at this height")

	return cmd
}

// createOptions builds the per-client overrides from flags. Unset flags leave
// the parameter to be derived.
func createOptions(cmd *cobra.Command) (*safety.ClientCreateOptions, error) {
	opts := &safety.ClientCreateOptions{}
	set := false

	if s, _ := cmd.Flags().GetString(flagTrustingPeriod); s != "" {
		d, err := config.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flagTrustingPeriod, err)
		}
		opts.TrustingPeriod = &d
		set = true
	}
	if s, _ := cmd.Flags().GetString(flagMaxClockDrift); s != "" {
		d, err := config.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flagMaxClockDrift, err)
		}
		opts.MaxClockDrift = &d
		set = true
	}
	if s, _ := cmd.Flags().GetString(flagTrustThreshold); s != "" {
		f, err := safety.ParseFraction(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flagTrustThreshold, err)
		}
		opts.TrustThreshold = &f
		set = true
	}

	if !set {
		return nil, nil
	}
	return opts, nil
}

func runResolvePair(cmd *cobra.Command, a *app, first, second config.ChainConfig, opts *safety.ClientCreateOptions) error {
	if unbonding, _ := cmd.Flags().GetDuration(flagUnbondingPeriod); unbonding > 0 {
		return fmt.Errorf("--%s applies to a single direction; unbonding periods are queried per chain with --%s",
			flagUnbondingPeriod, flagBothDirections)
	}

	chainA, err := a.connect(first.ID)
	if err != nil {
		return err
	}
	chainB, err := a.connect(second.ID)
	if err != nil {
		return err
	}

	pair, err := safety.NewResolver(a.logger).WithMetrics(a.metrics).ResolvePair(cmd.Context(),
		first.SafetyConfig(), second.SafetyConfig(), chainA.chain, chainB.chain, opts, opts)
	if err != nil {
		return err
	}

	printParams(cmd, first.ID, second.ID, pair.AOnB)
	printParams(cmd, second.ID, first.ID, pair.BOnA)
	return nil
}

func printParams(cmd *cobra.Command, subject, host string, p safety.EffectiveClientParams) {
	writeLine(cmd, "client of %s on %s", subject, host)
	writeLine(cmd, "  max_clock_drift:  %s", p.MaxClockDrift)
	writeLine(cmd, "  trusting_period:  %s", p.TrustingPeriod)
	writeLine(cmd, "  trust_threshold:  %s", safety.FormatFraction(p.TrustThreshold))
	writeLine(cmd, "  unbonding_period: %s", p.UnbondingPeriod)
}

// printClientState prints the Tendermint client state carrying params as JSON
func printClientState(cmd *cobra.Command, subjectID string, params safety.EffectiveClientParams, height uint64) error {
	cs, err := safety.NewClientState(subjectID, params, height)
	if err != nil {
		return err
	}
	bz, err := chain.MakeEncodingConfig().Codec.MarshalJSON(cs)
	if err != nil {
		return fmt.Errorf("failed to encode client state: %w", err)
	}
	writeLine(cmd, "%s", bz)
	return nil
}

func verifyClient(cmd *cobra.Command, a *app, hostID, clientID string, params safety.EffectiveClientParams) error {
	host, err := a.connect(hostID)
	if err != nil {
		return err
	}

	cs, err := host.chain.QueryClientState(cmd.Context(), clientID)
	if err != nil {
		return err
	}

	if err := safety.VerifyEmbedded(params, safety.ViewFromClientState(cs)); err != nil {
		return err
	}
	writeLine(cmd, "client %s on %s matches (latest height %s)", clientID, hostID, cs.LatestHeight)
	return nil
}
