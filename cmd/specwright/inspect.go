package main

import (
	"context"
	"fmt"
	"os"

	"github.com/specwright/specwright/internal/config"
)

// inspect gathers evidence for a keyword and prints it, without starting a
// server or a session. Useful for checking what the aggregator can see.
func inspect(args []string) {
	keyword := ""
	repoRef := ""
	configPath := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--keyword":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--keyword requires a value")
				os.Exit(1)
			}
			keyword = args[i]
		case "--repo":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--repo requires a value")
				os.Exit(1)
			}
			repoRef = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if keyword == "" {
		fmt.Fprintln(os.Stderr, "--keyword is required")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	m, err := buildMachine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ev, assets := m.Inspect(context.Background(), repoRef, "", keyword)

	fmt.Printf("keyword: %s\n", keyword)
	fmt.Printf("flow available: %v\n", ev.FlowAvailable)
	if ev.SessionID != "" {
		fmt.Printf("flow session: %s\n", ev.SessionID)
	}
	fmt.Printf("vector steps: %d\n", len(ev.VectorSteps))
	for _, src := range ev.Degraded {
		fmt.Printf("degraded: %s\n", src)
	}
	if ev.EnrichedSteps != "" {
		fmt.Printf("\n%s\n", ev.EnrichedSteps)
	}
	if len(assets) > 0 {
		fmt.Printf("\nexisting assets:\n")
		for _, a := range assets {
			fmt.Printf("  %s\n", a.Path)
		}
	}
}
