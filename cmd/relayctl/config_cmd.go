package main

import (
	"github.com/spf13/cobra"

	"github.com/MoonbridgeInc/hermes/internal/relayer"
)

const flagOutDir = "out"

// newConfigCmd returns the config command group
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and render the relayer config",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigRenderCmd())

	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every chain entry against the safety and gas price invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			for _, c := range a.cfg.Chains {
				writeLine(cmd, "%s (%s): ok, gas price %s", c.ID, c.Type, c.StaticGasPrice())
			}
			return nil
		},
	}
}

func newConfigRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [chain...]",
		Short: "Render the relayer config.toml for the given chains, or all chains",
		Long: `Renders the config.toml handed to the relayer. The [harness] section and
local keyring settings are dropped. With --out the file is written to
<out>/config.toml, otherwise it is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			hermesCfg, err := a.cfg.HermesConfig(args...)
			if err != nil {
				return err
			}

			if dir, _ := cmd.Flags().GetString(flagOutDir); dir != "" {
				path, err := relayer.WriteConfig(dir, hermesCfg)
				if err != nil {
					return err
				}
				a.logger.Info("Wrote relayer config", "path", path, "chains", len(hermesCfg.Chains))
				return nil
			}

			data, err := relayer.RenderConfig(hermesCfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().String(flagOutDir, "", "directory to write config.toml into")

	return cmd
}
