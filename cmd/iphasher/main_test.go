package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/index"
)

func hexOf(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, _ := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--quiet", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func exitCode(err error) int {
	var e exitError
	if errors.As(err, &e) {
		return e.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestSearchCommand(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "search", "--range", "10.0.0.0/24", "--workers", "3", hexOf("10.0.0.77"))
	if err != nil {
		t.Fatalf("search failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[+] Found: 10.0.0.77") {
		t.Fatalf("output missing result:\n%s", out)
	}
}

func TestSearchCommandNotFound(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "search", "-r", "10.0.0.0/26", hexOf("8.8.8.8"))
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (%v)", code, err)
	}
	if !strings.Contains(out, "Not found") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestSearchCommandInvalidDigest(t *testing.T) {
	t.Parallel()
	if _, err := runCLI(t, "search", "not-hex"); !errors.Is(err, hasher.ErrInvalidDigest) {
		t.Fatalf("err = %v, want ErrInvalidDigest", err)
	}
}

func TestSearchCommandGPU(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "search", "--gpu", "-r", "10.0.0.0/26", hexOf("10.0.0.1"))
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d (%v)", code, err)
	}
	if !strings.Contains(out, "GPU search not available") {
		t.Fatalf("output:\n%s", out)
	}

	out, err = runCLI(t, "search", "--gpu", "--device", "-1", "--global-size", "16", "-r", "10.0.0.0/26", hexOf("10.0.0.33"))
	if err != nil {
		t.Fatalf("emulated gpu search failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[+] Found: 10.0.0.33") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestGenerateAndQuery(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "index")

	out, err := runCLI(t, "generate", "-d", dir, "-r", "172.16.0.0/26", "--batch-size", "10")
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Index complete") {
		t.Fatalf("output:\n%s", out)
	}

	out, err = runCLI(t, "query", "-d", dir, hexOf("172.16.0.63"))
	if err != nil {
		t.Fatalf("query failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[+] Found: 172.16.0.63") {
		t.Fatalf("output:\n%s", out)
	}

	out, err = runCLI(t, "query", "-d", dir, hexOf("172.16.0.64"))
	if code := exitCode(err); code != 1 || !strings.Contains(out, "Not found") {
		t.Fatalf("miss: exit %d, output:\n%s", code, out)
	}

	out, err = runCLI(t, "generate", "-d", dir, "-r", "172.16.0.0/26")
	if code := exitCode(err); code != 1 || !strings.Contains(out, "not empty") {
		t.Fatalf("second generate: exit %d, output:\n%s", code, out)
	}
}

func TestQueryWithoutManifestWarns(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "index")
	if out, err := runCLI(t, "generate", "-d", dir, "-r", "192.168.1.0/28"); err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if err := os.Remove(filepath.Join(dir, index.ManifestFile)); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "query", "-d", dir, hexOf("192.168.1.9"))
	if err != nil {
		t.Fatalf("query failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[-] ") || !strings.Contains(out, "no manifest") {
		t.Fatalf("missing manifest warning:\n%s", out)
	}
	if strings.Contains(out, "[!]") {
		t.Fatalf("warning printed as an error:\n%s", out)
	}
	if !strings.Contains(out, "[+] Found: 192.168.1.9") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestQueryMissingIndex(t *testing.T) {
	t.Parallel()
	_, err := runCLI(t, "query", "-d", filepath.Join(t.TempDir(), "none"), hexOf("1.1.1.1"))
	if err == nil || exitCode(err) != -1 {
		t.Fatalf("err = %v, want a failure", err)
	}
}

func TestConfigCommand(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "config", "--workers", "5", "--backend", "portable")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "workers: 5") || !strings.Contains(out, "backend: portable") {
		t.Fatalf("config output:\n%s", out)
	}
}

func TestInvalidFlagConfig(t *testing.T) {
	t.Parallel()
	if _, err := runCLI(t, "config", "--backend", "quantum"); err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestBackendsAndVersion(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "backends")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range hasher.Names() {
		if !strings.Contains(out, name) {
			t.Fatalf("backends output missing %q:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "(auto)") {
		t.Fatalf("no detected backend marked:\n%s", out)
	}

	out, err = runCLI(t, "version")
	if err != nil || !strings.Contains(out, "iphasher v"+AppVersion) {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestBenchCommand(t *testing.T) {
	t.Parallel()
	out, err := runCLI(t, "bench", "-n", "2000", "-w", "2", "-b", "portable")
	if err != nil {
		t.Fatalf("bench failed: %v\n%s", err, out)
	}
	for _, want := range []string{"portable", "Single-thread:", "2-thread:", "Benchmark complete"} {
		if !strings.Contains(out, want) {
			t.Fatalf("bench output missing %q:\n%s", want, out)
		}
	}
}
