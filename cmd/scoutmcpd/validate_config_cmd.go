package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmagar/scoutmcp/internal/config"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a config file, printing the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig()
		},
	}
}

func runValidateConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering effective config: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
