package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/bowtae-labs/tsrc/pkg/audit"
	"github.com/bowtae-labs/tsrc/pkg/authorizer"
	"github.com/bowtae-labs/tsrc/pkg/config"
	"github.com/bowtae-labs/tsrc/pkg/counter"
	"github.com/bowtae-labs/tsrc/pkg/executor"
	"github.com/bowtae-labs/tsrc/pkg/gate"
	"github.com/bowtae-labs/tsrc/pkg/handlers"
	"github.com/bowtae-labs/tsrc/pkg/keys"
	"github.com/bowtae-labs/tsrc/pkg/observability"
	"github.com/bowtae-labs/tsrc/pkg/policy"
	"github.com/bowtae-labs/tsrc/pkg/proposal"
	"github.com/bowtae-labs/tsrc/pkg/snapshot"
)

const defaultKeyringPath = ".tsrc/keyring.json"

func runSubmit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "", "submission JSON file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	setupLogger(cfg.LogLevel, stderr)
	ctx := context.Background()

	input, err := readSubmission(*file)
	if err != nil {
		fmt.Fprintf(stderr, "read submission: %v\n", err)
		return 1
	}

	g, cleanup, err := buildGate(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "wire gate: %v\n", err)
		return 1
	}
	defer cleanup()

	result, err := g.Submit(ctx, *input)
	if err != nil {
		fmt.Fprintf(stderr, "submission rejected: %v\n", err)
		return 1
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "encode result: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(encoded))

	if !result.Success {
		return 1
	}
	return 0
}

func readSubmission(path string) (*proposal.SubmissionInput, error) {
	var reader io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader = f
	}

	var input proposal.SubmissionInput
	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return nil, fmt.Errorf("parse submission json: %w", err)
	}
	return &input, nil
}

// buildGate wires the full pipeline from configuration: durable
// stores, keys, handlers, observability and the stage composition.
func buildGate(ctx context.Context, cfg *config.Config) (*gate.Gate, func(), error) {
	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.DatabasePath, err)
	}
	cleanup := func() { _ = db.Close() }

	counterStore, usedSet, err := counterBackends(cfg, db)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	policyStore, err := policy.NewSQLiteStore(db)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open policy store: %w", err)
	}
	if err := ensurePolicy(ctx, cfg, policyStore); err != nil {
		cleanup()
		return nil, nil, err
	}

	provider, err := signingKeys()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	sink, err := audit.NewSQLiteSink(db)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open audit sink: %w", err)
	}
	headSeq, headHash, err := sink.Head(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("read audit chain head: %w", err)
	}
	auditLog := audit.NewLog().WithSink(sink).Resume(headSeq, headHash)

	snapshots := snapshot.NewMemoryStore()
	if _, err := snapshots.Create(ctx, nil, "lexical-v1", map[string]any{"config": cfg.ScoreConfigID}); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create baseline snapshot: %w", err)
	}

	exec := executor.New(provider, usedSet, policyStore, auditLog).
		Register(proposal.ActionScoreProposal, handlers.Score(logRecorder{})).
		Register("create_payment_session", handlers.Payment(logPaymentProvider{})).
		Register("register_blockchain", handlers.Blockchain(logRegistrar{})).
		Register("update_snapshot", handlers.UpdateSnapshot(snapshots))

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "tsrc-gate",
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1.0,
		Enabled:      cfg.OTelEnabled,
		Insecure:     true,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init observability: %w", err)
	}

	g := gate.New(
		proposal.NewGenerator(proposal.LexicalScorer{ConfigID: cfg.ScoreConfigID}, snapshots, cfg.ScoreConfigID),
		policyStore,
		authorizer.New(counterStore, provider, auditLog),
		exec,
		rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		obs,
	)
	return g, func() {
		_ = obs.Shutdown(ctx)
		cleanup()
	}, nil
}

func counterBackends(cfg *config.Config, db *sql.DB) (counter.Store, counter.UsedSet, error) {
	switch cfg.CounterBackend {
	case "sqlite":
		store, err := counter.NewSQLiteStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("open counter store: %w", err)
		}
		used, err := counter.NewSQLiteUsedSet(db)
		if err != nil {
			return nil, nil, fmt.Errorf("open used set: %w", err)
		}
		return store, used, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, nil, errors.New("counter backend postgres requires TSRC_POSTGRES_URL")
		}
		pg, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store, err := counter.NewPostgresStore(pg)
		if err != nil {
			return nil, nil, fmt.Errorf("open counter store: %w", err)
		}
		used, err := counter.NewPostgresUsedSet(pg)
		if err != nil {
			return nil, nil, fmt.Errorf("open used set: %w", err)
		}
		return store, used, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("counter backend redis requires TSRC_REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return counter.NewRedisStore(client, "tsrc"), counter.NewRedisUsedSet(client, "tsrc"), nil
	case "memory":
		return counter.NewMemoryStore(), counter.NewMemoryUsedSet(), nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", cfg.CounterBackend)
	}
}

// ensurePolicy installs the policy file when the store is empty, so a
// fresh gate boots with a governed baseline instead of failing open.
func ensurePolicy(ctx context.Context, cfg *config.Config, store *policy.SQLiteStore) error {
	_, err := store.Current(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, policy.ErrNoPolicy) {
		return fmt.Errorf("read policy: %w", err)
	}

	state, err := policy.LoadFile(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load policy file: %w", err)
	}
	if err := store.Install(ctx, state); err != nil {
		return fmt.Errorf("install policy: %w", err)
	}
	slog.Info("installed policy", "path", cfg.PolicyPath, "policy_seq", state.PolicySeq)
	return nil
}

func signingKeys() (keys.Provider, error) {
	if provider, err := keys.FromEnv(); err == nil {
		return provider, nil
	}
	keyring, err := keys.OpenKeyring(defaultKeyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return keyring, nil
}
