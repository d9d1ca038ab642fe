package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			return 0
		}
		return runStart(args)
	case "config":
		return runConfigNoun(args)
	case "journal":
		return runJournalNoun(args)
	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: crispbridge version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("crispbridge %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`crispbridge - Crisp plugin webhook receiver and settings editor

Usage:
  crispbridge <command> [flags]
  crispbridge <noun> <action> [flags]

Commands:
  start             Serve the webhook, settings page, and ops endpoints

Config Commands:
  config check      Validate configuration (add --remote to reach Crisp)
  config show       Print the effective configuration, secrets masked
  config get        Print one value by dot path
  config lock       Record the config file hash in .checksums

Journal Commands:
  journal list      Show recently received webhooks

General:
  version           Show version information
  help              Show this help message

Configuration is read from --config, $CRISP_CONFIG, or the standard
locations; CRISP_* environment variables override file values.
`)
}

func printStartHelp() {
	fmt.Println("Usage: crispbridge start [--config PATH]")
	fmt.Println("Start the service in the foreground. SIGINT or SIGTERM shuts it down.")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: crispbridge config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show, get, lock")
}

func printJournalNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: crispbridge journal <action> [flags]")
	fmt.Fprintln(w, "Actions: list")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: crispbridge config check [--config PATH] [--json] [--remote]")
	fmt.Println("Validate configuration. --remote also fetches the settings schema from Crisp.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Valid")
	fmt.Println("  1  Invalid or failed to load")
	fmt.Println("  2  Valid with warnings")
}

func printConfigShowHelp() {
	fmt.Println("Usage: crispbridge config show [--config PATH] [--json] [path]")
	fmt.Println("Print the effective configuration with credentials masked.")
}

func printConfigGetHelp() {
	fmt.Println("Usage: crispbridge config get <path> [--config PATH] [--json]")
	fmt.Println("Print one configuration value, e.g. settings.token_cache_ttl.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: crispbridge config lock [--config PATH]")
	fmt.Println("Record the config file's BLAKE3 hash; later loads refuse a modified file.")
}

func printJournalListHelp() {
	fmt.Println("Usage: crispbridge journal list [--config PATH] [--limit N] [--json]")
	fmt.Println("Show the most recent journaled webhooks, newest first.")
}
