// File: cmd/coreparker/topology.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/momentics/coreparker/affinity"
)

func newTopologyCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Probe the usable core count and print the resulting masks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			topo, err := resolveTopology(cmd.Context(), affinity.OSProber{}, affinity.ReportedCores(), log)
			if err != nil {
				return err
			}
			printTopology(cmd.OutOrStdout(), topo, cfg.ParkCores, cfg.IdleParkCores)
			return nil
		},
	}
}

func printTopology(w io.Writer, topo affinity.Topology, park, idle int) {
	fmt.Fprintf(w, "reported cores: %d\n", topo.Reported)
	fmt.Fprintf(w, "usable cores:   %d\n", topo.Cores)
	fmt.Fprintf(w, "loading mask:   %s (%d parked)\n", topo.Parked(park), topo.ClampPark(park))
	fmt.Fprintf(w, "idle mask:      %s (%d parked)\n", topo.Parked(idle), topo.ClampPark(idle))
}
