package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jmagar/scoutmcp/internal/config"
	"github.com/jmagar/scoutmcp/internal/inventory"
	"github.com/jmagar/scoutmcp/internal/probe"
)

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Reachability-check every known host without starting a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe()
		},
	}
}

func runProbe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	inv, err := inventory.NewFileAdapter(cfg.InventoryPath)
	if err != nil {
		return fmt.Errorf("loading inventory %q: %w", cfg.InventoryPath, err)
	}

	hosts := inv.Hosts()
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]probe.Target, 0, len(names))
	for _, name := range names {
		h := hosts[name]
		targets = append(targets, probe.Target{Host: name, Address: fmt.Sprintf("%s:%d", h.Address, h.Port)})
	}

	results := probe.Probe(context.Background(), targets, probe.DefaultTimeout)
	byHost := make(map[string]probe.Result, len(results))
	for _, r := range results {
		byHost[r.Host] = r
	}

	for _, name := range names {
		r := byHost[name]
		state := "offline"
		if r.Reachable {
			state = "online"
		}
		if r.Err != nil {
			fmt.Printf("%s\t%s\t%v\n", name, state, r.Err)
			continue
		}
		fmt.Printf("%s\t%s\n", name, state)
	}
	return nil
}
