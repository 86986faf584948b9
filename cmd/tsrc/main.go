package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands. Split out from main for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "submit":
		return runSubmit(args[2:], stdout, stderr)
	case "policy":
		if len(args) < 3 || args[2] != "install" {
			fmt.Fprintln(stderr, "Usage: tsrc policy install -f <policy.yaml>")
			return 2
		}
		return runPolicyInstall(args[3:], stdout, stderr)
	case "keys":
		if len(args) < 3 || args[2] != "rotate" {
			fmt.Fprintln(stderr, "Usage: tsrc keys rotate")
			return 2
		}
		return runKeysRotate(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "tsrc - proposal authorization gate")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tsrc submit -f <submission.json>   run a submission through the gate")
	fmt.Fprintln(w, "  tsrc policy install -f <policy.yaml>  install a governance policy")
	fmt.Fprintln(w, "  tsrc keys rotate                   rotate the signing key")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration is read from TSRC_* environment variables.")
}

func setupLogger(level string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}
