package counter

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkIncr measures single-threaded throughput
func BenchmarkIncr(b *testing.B) {
	store := NewInMemory()
	ctx := context.Background()

	for b.Loop() {
		_, _, _ = store.Incr(ctx, "bench-key", time.Minute)
	}
}

// BenchmarkIncr_Parallel measures contention on one hot key
func BenchmarkIncr_Parallel(b *testing.B) {
	store := NewInMemory()
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = store.Incr(ctx, "bench-key", time.Minute)
		}
	})
}

// BenchmarkIncr_HighCardinality measures performance with many unique keys
func BenchmarkIncr_HighCardinality(b *testing.B) {
	store := NewInMemory()
	ctx := context.Background()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("ratelimit:ip:10.0.%d.%d:evaluate", (i/256)%256, i%256)
		_, _, _ = store.Incr(ctx, key, time.Minute)
	}
}
