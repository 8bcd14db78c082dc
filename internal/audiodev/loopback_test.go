package audiodev

import (
	"context"
	"testing"
)

func TestLoopbackRoundTrip(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	ctx := context.Background()

	in := []float32{0.1, 0.2, 0.3, 0.4}
	if err := lb.Write(ctx, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := make([]float32, 4)
	if err := lb.Read(ctx, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: want %v, got %v", i, in[i], out[i])
		}
	}
}

func TestLoopbackReadZeroFillsWhenEmpty(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	out := make([]float32, 4)
	for i := range out {
		out[i] = 99
	}
	if err := lb.Read(context.Background(), out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: want 0, got %v", i, v)
		}
	}
}

func TestLoopbackRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := lb.Write(ctx, []float32{1}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if err := lb.Read(ctx, make([]float32, 1)); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
