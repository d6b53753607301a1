package manager

import (
	"fmt"
	"testing"

	"Go2TraceSpectra/internal/config"
)

var benchLines []string

func init() {
	hosts := []string{"10.10.10.10", "10.10.10.11", "10.10.10.12", "10.10.10.99"}
	lengths := []int{268, 276, 36, 524, 340, 999}
	for i := 0; i < 10000; i++ {
		host := hosts[i%len(hosts)]
		benchLines = append(benchLines, fmt.Sprintf(
			"10:00:00.%06d IP 10.10.10.2.%d > %s.1414: Flags [P.], seq 1, ack 1, win 502, length %d",
			i%1000000, 40000+i%64, host, lengths[i%len(lengths)]))
	}
}

func benchConfig(workers, shards int) config.EngineConfig {
	cfg := engineConfig()
	cfg.NumWorkers = workers
	cfg.FlowShards = shards
	return cfg
}

func runBench(b *testing.B, cfg config.EngineConfig) {
	m, err := NewManager(cfg)
	if err != nil {
		b.Fatalf("failed to create manager: %v", err)
	}
	m.Start()
	defer m.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.ProcessLine(benchLines[i%len(benchLines)])
	}
	m.Snapshot()
}

func BenchmarkManager(b *testing.B) {
	b.Run("Sequential", func(b *testing.B) {
		runBench(b, benchConfig(1, 1))
	})
	b.Run("FanOut", func(b *testing.B) {
		runBench(b, benchConfig(4, 1))
	})
	b.Run("FanOut_Sharded", func(b *testing.B) {
		runBench(b, benchConfig(4, 4))
	})
}

func BenchmarkManager_ParallelProducers(b *testing.B) {
	m, err := NewManager(benchConfig(4, 4))
	if err != nil {
		b.Fatalf("failed to create manager: %v", err)
	}
	m.Start()
	defer m.Stop()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.ProcessLine(benchLines[i%len(benchLines)])
			i++
		}
	})
}
