package main

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/gasprice"
)

const (
	flagBaseFee = "base-fee"
	flagGas     = "gas"
)

// newEstimateCmd returns a command quoting the gas price of a chain
func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [chain]",
		Short: "Quote the gas price a relayer would pay on a chain",
		Long: `Quotes the price per gas unit under the chain's gas price policy.

With dynamic_gas_price enabled the chain's fee market base fee is queried,
unless --base-fee supplies it. With the policy disabled the static gas_price is
quoted without contacting the chain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			cc, err := a.cfg.Chain(args[0])
			if err != nil {
				return err
			}
			policy := cc.GasPolicy()

			var source gasprice.CongestionSource
			if s, _ := cmd.Flags().GetString(flagBaseFee); s != "" {
				baseFee, err := math.LegacyNewDecFromStr(s)
				if err != nil {
					return fmt.Errorf("invalid --%s: %w", flagBaseFee, err)
				}
				source = gasprice.StaticSource{BaseFee: baseFee}
			} else if policy.Enabled {
				c, err := a.connect(cc.ID)
				if err != nil {
					return err
				}
				source = chain.CongestionSource(c.chain)
			}

			quote, err := gasprice.NewService(a.logger, source, a.metrics).Quote(cmd.Context(), policy)
			if err != nil {
				return err
			}

			mode := "static"
			if policy.Enabled {
				mode = "dynamic"
			}
			writeLine(cmd, "%s gas price (%s): %s", cc.ID, mode, quote)

			if gas, _ := cmd.Flags().GetUint64(flagGas); gas > 0 {
				adjusted := uint64(float64(gas) * policy.EffectiveGasMultiplier())
				writeLine(cmd, "fee for %d gas (adjusted to %d): %s", gas, adjusted, quote.FeeForGas(adjusted))
			}
			return nil
		},
	}

	cmd.Flags().String(flagBaseFee, "", "congestion base fee to price against instead of querying the chain")
	cmd.Flags().Uint64(flagGas, 0, "also print the fee for this much simulated gas")

	return cmd
}
