package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/amplitudesxd/IPHasher/search"
)

func TestFormatCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1 << 10, "1.00K"},
		{3 << 20, "3.00M"},
		{search.KeyspaceSize, "4.00G"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Fatalf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 H/s"},
		{512, "512 H/s"},
		{2500, "2.50 kH/s"},
		{28.1e6, "28.10 MH/s"},
		{1.5e9, "1.50 GH/s"},
	}
	for _, tt := range tests {
		if got := FormatRate(tt.in); got != tt.want {
			t.Fatalf("FormatRate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{1234 * time.Microsecond, "1ms"},
		{12345 * time.Millisecond, "12.3s"},
		{90*time.Minute + 400*time.Millisecond, "1h30m0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	d := NewDisplay(&buf, true)

	d.Infof("Target: %s", "abc")
	d.Successf("Found: %s", "1.2.3.4")
	d.Warnf("partial")
	d.Errorf("Not found")
	d.Detail("indented")

	want := "[*] Target: abc\n[+] Found: 1.2.3.4\n[-] partial\n[!] Not found\n    indented\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestDisplayProgressNotTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	d := NewDisplay(&buf, false)
	d.Progress(search.Snapshot{Processed: 1 << 20, Total: 1 << 22, Rate: 2e6, Elapsed: time.Second, ETA: 3 * time.Second})
	d.EndProgress()

	out := buf.String()
	if strings.Contains(out, "\r") {
		t.Fatal("carriage return written to a non-terminal")
	}
	for _, want := range []string{"[~]", "25.00%", "1.00M/4.00M", "2.00 MH/s", "eta 3s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("progress %q missing %q", out, want)
		}
	}
}

func TestDisplayStats(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	d := NewDisplay(&buf, false)
	out := search.Outcome{Processed: 1 << 20, Elapsed: 2 * time.Second, Workers: 4, Backend: "simd"}
	d.Stats("search stats", OutcomeRows(out, 1<<24))

	got := buf.String()
	for _, want := range []string{"SEARCH STATS", "Workers:", "simd", "1.00M of 16.00M", "Avg hashrate:"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats missing %q:\n%s", want, got)
		}
	}
}
