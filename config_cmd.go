package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/alidrive-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

// configShowOutput is the JSON schema for `config show --json`. The refresh
// token is left out.
type configShowOutput struct {
	Account    string        `json:"account"`
	ConfigPath string        `json:"config_path"`
	TokenPath  string        `json:"token_path"`
	Config     config.Config `json:"config"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd)

	if cc.Flags.JSON {
		return printJSON(cc.Out, configShowOutput{
			Account:    cc.Cfg.Account,
			ConfigPath: cc.Cfg.Path,
			TokenPath:  cc.Cfg.TokenPath(),
			Config:     cc.Cfg.Config,
		})
	}

	return config.RenderEffective(cc.Cfg, cc.Out)
}
