package search

import (
	"context"
	"errors"
	"testing"

	"github.com/amplitudesxd/IPHasher/hasher"
)

func TestOpenDeviceUnavailable(t *testing.T) {
	t.Parallel()
	if GPUAvailable {
		t.Skip("gpu backend compiled in")
	}
	dev, err := OpenDevice(0)
	if !errors.Is(err, ErrGPUUnavailable) {
		t.Fatalf("err = %v, want ErrGPUUnavailable", err)
	}
	if dev != nil {
		t.Fatal("device should be nil")
	}
}

func TestEncodeFromTableMatchesEncoder(t *testing.T) {
	t.Parallel()
	table := hasher.FlatTable()
	var got, want [hasher.MaxPayload]byte
	for _, addr := range []uint32{0, 1, 9, 10, 99, 100, 255, 0x0A000001, 0x7F000001, 0xC0A80164, 0xFFFFFFFF} {
		n := encodeFromTable(&table, addr, got[:])
		m := hasher.Encode(want[:], addr)
		if string(got[:n]) != string(want[:m]) {
			t.Fatalf("table encoding %q, encoder %q", got[:n], want[:m])
		}
	}
}

func TestSoftwareDeviceFindsAddress(t *testing.T) {
	t.Parallel()
	r := mustRange(t, "10.0.0.0/20")
	want, _ := hasher.ParseAddress("10.0.14.2")
	target := digestOf(want)

	for _, gs := range []int{1, 7, 64, DefaultGlobalSize} {
		k, err := NewKernel(target, DefaultGPUPrefix, r, gs)
		if err != nil {
			t.Fatal(err)
		}
		dev := &SoftwareDevice{Lanes: 4}
		ip, err := dev.Run(context.Background(), k)
		if err != nil {
			t.Fatalf("global size %d: %v", gs, err)
		}
		if ip != "10.0.14.2" {
			t.Fatalf("global size %d: got %q", gs, ip)
		}
	}
}

func TestSoftwareDeviceMiss(t *testing.T) {
	t.Parallel()
	k, err := NewKernel(digestOf(1), DefaultGPUPrefix, mustRange(t, "10.0.0.0/24"), 16)
	if err != nil {
		t.Fatal(err)
	}
	ip, err := NewSoftwareDevice().Run(context.Background(), k)
	if err != nil || ip != "" {
		t.Fatalf("Run = %q, %v; want miss", ip, err)
	}
}

func TestSoftwareDeviceCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k, err := NewKernel(digestOf(1), DefaultGPUPrefix, mustRange(t, "10.0.0.0/12"), 16)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSoftwareDevice().Run(ctx, k); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewKernelRejectsPrefix(t *testing.T) {
	t.Parallel()
	for _, p := range []int{0, -1, 33} {
		if _, err := NewKernel(digestOf(0), p, Full(), 0); !errors.Is(err, hasher.ErrInvalidPrefix) {
			t.Fatalf("prefix %d: err = %v", p, err)
		}
	}
	k, err := NewKernel(digestOf(0), 8, Full(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if k.GlobalSize != DefaultGlobalSize || len(k.Target) != 8 || k.End != KeyspaceSize {
		t.Fatalf("kernel = %+v", k)
	}
}

func TestSearchDeviceVerifies(t *testing.T) {
	t.Parallel()
	r := mustRange(t, "192.168.0.0/20")
	want, _ := hasher.ParseAddress("192.168.7.200")

	out, err := SearchDevice(context.Background(), &SoftwareDevice{Lanes: 2}, digestOf(want), GPUConfig{Range: r, GlobalSize: 32})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Found || out.Result.Address != want || out.Result.Digest != digestOf(want) {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Backend != "software" {
		t.Fatalf("backend = %q", out.Backend)
	}
	if out.Workers != 1 {
		t.Fatalf("workers = %d, want 1 device", out.Workers)
	}
}

// collidingDevice reports fake prefix hits before delegating to a real device.
type collidingDevice struct {
	inner Device
	fakes []string
	calls int
}

func (d *collidingDevice) Name() string { return "colliding" }
func (d *collidingDevice) Close() error { return nil }

func (d *collidingDevice) Run(ctx context.Context, k Kernel) (string, error) {
	d.calls++
	for i, ip := range d.fakes {
		addr, _ := hasher.ParseAddress(ip)
		if uint64(addr) >= k.Start && uint64(addr) < k.End {
			d.fakes = append(d.fakes[:i], d.fakes[i+1:]...)
			return ip, nil
		}
	}
	return d.inner.Run(ctx, k)
}

func TestSearchDeviceSkipsFalseHits(t *testing.T) {
	t.Parallel()
	r := mustRange(t, "10.0.0.0/22")
	want, _ := hasher.ParseAddress("10.0.1.10")

	dev := &collidingDevice{
		inner: &SoftwareDevice{Lanes: 2},
		fakes: []string{"10.0.2.0", "10.0.0.5"},
	}
	out, err := SearchDevice(context.Background(), dev, digestOf(want), GPUConfig{Range: r, GlobalSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Found || out.Result.Address != want {
		t.Fatalf("outcome = %+v", out)
	}
	if dev.calls < 3 {
		t.Fatalf("expected re-dispatch after false hits, got %d calls", dev.calls)
	}
}

func TestSearchDeviceRejectsOutOfRange(t *testing.T) {
	t.Parallel()
	for _, ip := range []string{"8.8.8.8", "garbage"} {
		bad := &outOfRangeDevice{ip: ip}
		if _, err := SearchDevice(context.Background(), bad, digestOf(0), GPUConfig{Range: mustRange(t, "10.0.0.0/24")}); err == nil {
			t.Fatalf("expected an error for device result %q", ip)
		}
	}
}

type outOfRangeDevice struct{ ip string }

func (d *outOfRangeDevice) Name() string { return "broken" }
func (d *outOfRangeDevice) Close() error { return nil }
func (d *outOfRangeDevice) Run(context.Context, Kernel) (string, error) {
	return d.ip, nil
}

func TestSearchDeviceExhausts(t *testing.T) {
	t.Parallel()
	r := mustRange(t, "10.0.0.0/24")
	out, err := SearchDevice(context.Background(), NewSoftwareDevice(), digestOf(0x01010101), GPUConfig{Range: r})
	if err != nil {
		t.Fatal(err)
	}
	if out.Found || out.Processed != r.Len() {
		t.Fatalf("outcome = %+v", out)
	}
}
