package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	type result struct{ out, err []byte }
	done := make(chan result, 1)
	go func() {
		o, _ := io.ReadAll(stdoutR)
		e, _ := io.ReadAll(stderrR)
		done <- result{o, e}
	}()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	r := <-done
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(r.out), string(r.err)
}

func runCLIForTest(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

const baseConfig = `crisp:
  plugin_id: plug-1
  token_id: tid
  token_key: super-secret-key
`

func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(baseConfig+extra), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCLIUsage(t *testing.T) {
	code, _, _ := runCLIForTest(t)
	if code != 1 {
		t.Fatalf("no args exit = %d, want 1", code)
	}

	code, stdout, _ := runCLIForTest(t, "help")
	if code != 0 || !strings.Contains(stdout, "crispbridge <command>") {
		t.Fatalf("help exit=%d stdout=%q", code, stdout)
	}

	code, _, stderr := runCLIForTest(t, "frobnicate")
	if code != 1 || !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("unknown exit=%d stderr=%q", code, stderr)
	}
}

func TestRunNounHelp(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"config", "help"}, "Actions: check, show, get, lock"},
		{[]string{"journal", "--help"}, "Actions: list"},
		{[]string{"config", "check", "--help"}, "Exit codes:"},
		{[]string{"config", "lock", "-h"}, "BLAKE3"},
		{[]string{"journal", "list", "--help"}, "--limit N"},
		{[]string{"start", "--help"}, "crispbridge start"},
	}
	for _, tt := range tests {
		code, stdout, _ := runCLIForTest(t, tt.args...)
		if code != 0 {
			t.Errorf("%v exit = %d", tt.args, code)
		}
		if !strings.Contains(stdout, tt.want) {
			t.Errorf("%v stdout = %q, want %q", tt.args, stdout, tt.want)
		}
	}

	code, _, stderr := runCLIForTest(t, "config", "frob")
	if code != 1 || !strings.Contains(stderr, "Unknown config action") {
		t.Errorf("unknown config action exit=%d stderr=%q", code, stderr)
	}
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-01-02T03:04:05+02:00")

	code, stdout, _ := runCLIForTest(t, "version", "--json")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if info.Version != "1.2.3" || info.Commit != "0123456789ab" || info.BuildTime != "2026-01-02T01:04:05Z" {
		t.Fatalf("unexpected version info: %+v", info)
	}

	code, _, _ = runCLIForTest(t, "version", "extra")
	if code != 1 {
		t.Fatalf("version with positional exit = %d, want 1", code)
	}
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	if _, ok := normalizeBuildTimeUTC("unknown"); ok {
		t.Error("unknown should not normalize")
	}
	if _, ok := normalizeBuildTimeUTC("yesterday"); ok {
		t.Error("garbage should not normalize")
	}
	got, ok := normalizeBuildTimeUTC("2026-03-04T05:06:07.123Z")
	if !ok || got != "2026-03-04T05:06:07Z" {
		t.Errorf("got %q, %v", got, ok)
	}
	if shortenCommit("abc") != "abc" {
		t.Error("short commit should be unchanged")
	}
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, positionals := splitFlagsAndPositionals([]string{"settings.path", "--config", "c.yaml", "--json"})
	if strings.Join(flags, " ") != "--config c.yaml --json" {
		t.Errorf("flags = %v", flags)
	}
	if strings.Join(positionals, " ") != "settings.path" {
		t.Errorf("positionals = %v", positionals)
	}
}

func TestConfigCheckExitCodes(t *testing.T) {
	clean := writeTestConfig(t, "  signing_secret: whsec\n")
	code, stdout, _ := runCLIForTest(t, "config", "check", "--config", clean)
	if code != 0 || stdout != "Configuration valid.\n" {
		t.Fatalf("clean config exit=%d stdout=%q", code, stdout)
	}

	warn := writeTestConfig(t, "")
	code, stdout, _ = runCLIForTest(t, "config", "check", "--config", warn)
	if code != 2 || !strings.Contains(stdout, "crisp.signing_secret") {
		t.Fatalf("warning config exit=%d stdout=%q", code, stdout)
	}

	bad := writeTestConfig(t, "webhook:\n  max_body_size: lots\n")
	code, stdout, _ = runCLIForTest(t, "doctor", "--config", bad, "--json")
	if code != 1 || !strings.Contains(stdout, `"valid": false`) {
		t.Fatalf("bad config exit=%d stdout=%q", code, stdout)
	}

	missing := filepath.Join(t.TempDir(), "absent.yaml")
	code, stdout, _ = runCLIForTest(t, "config", "check", "--config", missing, "--json")
	if code != 1 || !strings.Contains(stdout, `"category": "load"`) {
		t.Fatalf("missing config exit=%d stdout=%q", code, stdout)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	path := writeTestConfig(t, "  signing_secret: whsec-value\n")

	code, stdout, _ := runCLIForTest(t, "config", "show", "--config", path)
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if strings.Contains(stdout, "super-secret-key") || strings.Contains(stdout, "whsec-value") {
		t.Fatalf("secrets leaked: %s", stdout)
	}
	if !strings.Contains(stdout, "plugin_id: plug-1") {
		t.Fatalf("expected plugin_id in output: %s", stdout)
	}

	code, stdout, _ = runCLIForTest(t, "config", "show", "crisp", "--config", path, "--json")
	if code != 0 || !strings.Contains(stdout, `"tier": "plugin"`) {
		t.Fatalf("show crisp exit=%d stdout=%q", code, stdout)
	}
}

func TestConfigGet(t *testing.T) {
	path := writeTestConfig(t, "")

	code, stdout, _ := runCLIForTest(t, "config", "get", "settings.path", "--config", path)
	if code != 0 || stdout != "crisp/settings\n" {
		t.Fatalf("exit=%d stdout=%q", code, stdout)
	}

	code, stdout, _ = runCLIForTest(t, "config", "get", "crisp.token_key", "--config", path)
	if code != 0 || strings.Contains(stdout, "super-secret-key") {
		t.Fatalf("token_key not masked: exit=%d stdout=%q", code, stdout)
	}

	code, _, _ = runCLIForTest(t, "config", "get", "--config", path)
	if code != 1 {
		t.Fatalf("missing path exit = %d, want 1", code)
	}

	code, _, stderr := runCLIForTest(t, "config", "get", "nope.nothing", "--config", path)
	if code != 1 || stderr == "" {
		t.Fatalf("unknown path exit=%d stderr=%q", code, stderr)
	}
}

func TestConfigLock(t *testing.T) {
	path := writeTestConfig(t, "")

	code, stdout, _ := runCLIForTest(t, "config", "lock", "--config", path)
	if code != 0 || !strings.Contains(stdout, "Locked") {
		t.Fatalf("lock exit=%d stdout=%q", code, stdout)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".checksums")); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	if err := os.WriteFile(path, []byte(baseConfig+"  tier: user\n"), 0600); err != nil {
		t.Fatal(err)
	}
	code, _, _ = runCLIForTest(t, "config", "check", "--config", path)
	if code != 1 {
		t.Fatalf("check of modified locked file exit = %d, want 1", code)
	}

	code, _, _ = runCLIForTest(t, "config", "lock", "--config", path)
	if code != 0 {
		t.Fatalf("relock exit = %d", code)
	}
	code, _, _ = runCLIForTest(t, "config", "get", "crisp.tier", "--config", path)
	if code != 0 {
		t.Fatalf("load after relock exit = %d", code)
	}

	if err := os.WriteFile(path, []byte("crisp: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runCLIForTest(t, "config", "lock", "--config", path)
	if code != 1 || !strings.Contains(stderr, "plugin_id") {
		t.Fatalf("lock of invalid file exit=%d stderr=%q", code, stderr)
	}
}
