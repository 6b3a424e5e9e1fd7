// Package main tests exercise the CLI end to end: the binary is built once
// and driven black-box, with the upstream API mocked through
// BILITREND_API_URL and the dataset directory through BILITREND_DATA_DIR.
package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var binaryPath string

// TestMain builds the binary once before running tests.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "bilitrend-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "bilitrend")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = "."
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

// runCLI executes the CLI binary with given arguments and environment.
func runCLI(t *testing.T, env map[string]string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode = 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("failed to run command: %v", err)
	}

	return outBuf.String(), errBuf.String(), exitCode
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, nil, "--version")

	if exitCode != 0 {
		t.Fatalf("exit code = %d", exitCode)
	}
	if !strings.Contains(stdout, "bilitrend version") {
		t.Errorf("version output = %q", stdout)
	}
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, nil, "--help")

	if exitCode != 0 {
		t.Fatalf("exit code = %d", exitCode)
	}
	for _, sub := range []string{"trending", "negatives", "snapshots"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestCLI_InvalidDate(t *testing.T) {
	_, stderr, exitCode := runCLI(t, nil, "trending", "not-a-date")

	if exitCode == 0 {
		t.Error("invalid date should fail")
	}
	if !strings.Contains(stderr, "invalid date") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCLI_InvalidPolicy(t *testing.T) {
	_, stderr, exitCode := runCLI(t, map[string]string{
		"BILITREND_DATA_DIR": t.TempDir(),
	}, "snapshots", "2026-08-30", "--policy", "bogus")

	if exitCode == 0 {
		t.Error("invalid policy should fail")
	}
	if !strings.Contains(stderr, "invalid policy") {
		t.Errorf("stderr = %q", stderr)
	}
}

// The negatives and snapshots jobs depend on prior state: a missing daily
// dataset must abort the run with a non-zero exit.
func TestCLI_MissingDatasetIsFatal(t *testing.T) {
	for _, sub := range []string{"negatives", "snapshots"} {
		t.Run(sub, func(t *testing.T) {
			_, stderr, exitCode := runCLI(t, map[string]string{
				"BILITREND_DATA_DIR": t.TempDir(),
			}, sub, "2026-01-01")

			if exitCode == 0 {
				t.Error("missing dataset should be fatal")
			}
			if !strings.Contains(stderr, "not found") {
				t.Errorf("stderr = %q", stderr)
			}
		})
	}
}

// A full trending run against a mocked upstream: one page of data, then an
// empty page, then a summary line and a persisted daily document.
func TestCLI_TrendingRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pn") != "1" {
			_, _ = w.Write([]byte(`{"code": 0, "data": {"list": []}}`))
			return
		}
		_, _ = w.Write([]byte(`{"code": 0, "data": {"list": [
			{"bvid": "BV1cli", "aid": 1, "title": "cli test", "tid": 4, "tname": "game",
			 "pubdate": 1700000000, "owner": {"mid": 2, "name": "up"},
			 "stat": {"view": 100, "like": 10, "coin": 1}}
		]}}`))
	}))
	defer server.Close()

	dataDir := t.TempDir()
	stdout, stderr, exitCode := runCLI(t, map[string]string{
		"BILITREND_API_URL":  server.URL,
		"BILITREND_DATA_DIR": dataDir,
	}, "trending", "2026-08-30", "--delay", "1", "--no-raw")

	if exitCode != 0 {
		t.Fatalf("exit code = %d, stderr = %q", exitCode, stderr)
	}
	if !strings.Contains(stdout, "day=2026-08-30 new=1") {
		t.Errorf("summary line = %q", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "daily", "2026-08-30.json"))
	if err != nil {
		t.Fatalf("daily document missing: %v", err)
	}
	var doc struct {
		Meta struct {
			PosCount int `json:"pos_count"`
		} `json:"meta"`
		Videos []struct {
			Bvid  string `json:"bvid"`
			Label int    `json:"label"`
		} `json:"videos"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("daily document unparsable: %v", err)
	}
	if doc.Meta.PosCount != 1 || len(doc.Videos) != 1 || doc.Videos[0].Bvid != "BV1cli" || doc.Videos[0].Label != 1 {
		t.Errorf("persisted document wrong: %+v", doc)
	}
}
