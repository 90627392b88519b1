package main

import (
	"fmt"
	"log"
	"os"

	"github.com/specwright/specwright/internal/config"
	"github.com/specwright/specwright/internal/evidence"
	"github.com/specwright/specwright/internal/framework"
	"github.com/specwright/specwright/internal/generate"
	"github.com/specwright/specwright/internal/server"
	"github.com/specwright/specwright/internal/session"
	"github.com/specwright/specwright/internal/trial"
)

func serve(args []string) {
	addr := ""
	configPath := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--addr requires a value")
				os.Exit(1)
			}
			addr = args[i]
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

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	m, err := buildMachine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr: cfg.Addr,
	}, m)

	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildMachine wires the session machine from configuration.
func buildMachine(cfg *config.Config) (*session.Machine, error) {
	repo, err := session.NewFileStore(cfg.Sessions.Dir)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "[specwright] ", log.LstdFlags)

	agg := evidence.Aggregator{
		Flows:  evidence.FlowStore{Dir: cfg.Flows.Dir},
		Logger: logger,
	}
	if cfg.Search.URL != "" {
		agg.Searcher = evidence.HTTPSearcher{URL: cfg.Search.URL}
	}

	return &session.Machine{
		Repo: repo,
		Gen: &generate.Command{
			Executable: cfg.Generator.Executable,
			Args:       cfg.Generator.Args,
			Timeout:    cfg.GeneratorTimeout(),
			Logger:     logger,
		},
		Agg: agg,
		Runner: &trial.Runner{
			Timeout: cfg.TrialTimeout(),
			Logger:  logger,
		},
		Resolver: &framework.Resolver{
			CloneBase:   cfg.Repo.CloneBase,
			DefaultRoot: cfg.Repo.Path,
		},
		Creds:  trial.FileSource{Path: cfg.Credentials.File},
		Logger: logger,
		Remote: cfg.Repo.Remote,
	}, nil
}
