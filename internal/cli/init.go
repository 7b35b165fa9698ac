package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/interfold/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize interfold storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"when none exists, and create the database schema.",
		Args: exactArgs(0),
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	dataDir, err := a.dataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	written, err := writeConfigIfMissing(a.configDir, configFile{
		Backend: a.config.GetString(cfgKeyBackend),
		DataDir: dataDir,
		User:    a.config.GetString(cfgKeyUser),
	})
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	backend, err := a.attach()
	if err != nil {
		return err
	}
	if err := backend.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	out := cmd.OutOrStdout()
	if written {
		fmt.Fprintf(out, "Wrote %s\n", paths.ConfigFile(a.configDir))
	}
	fmt.Fprintf(out, "Interfold initialized in %s\n", dataDir)
	return nil
}
