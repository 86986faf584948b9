package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"

	"github.com/bowtae-labs/tsrc/pkg/config"
	"github.com/bowtae-labs/tsrc/pkg/policy"
)

func runPolicyInstall(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("policy install", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "", "policy YAML file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(stderr, "policy install: -f <policy.yaml> is required")
		return 2
	}

	cfg := config.Load()
	setupLogger(cfg.LogLevel, stderr)

	state, err := policy.LoadFile(*file)
	if err != nil {
		fmt.Fprintf(stderr, "load policy: %v\n", err)
		return 1
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "open sqlite: %v\n", err)
		return 1
	}
	defer db.Close()

	store, err := policy.NewSQLiteStore(db)
	if err != nil {
		fmt.Fprintf(stderr, "open policy store: %v\n", err)
		return 1
	}
	if err := store.Install(context.Background(), state); err != nil {
		fmt.Fprintf(stderr, "install policy: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "installed policy_seq=%d kman=%s bset=%s\n",
		state.PolicySeq, state.KmanHash[:12], state.BsetHash[:12])
	return 0
}
