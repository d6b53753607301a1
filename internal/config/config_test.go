package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2TraceSpectra/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
log_level: debug
engine:
  service_port: 1414
  endpoint_groups:
    - name: QM1
      addresses: ["10.10.10.10"]
    - name: QM2
      addresses: ["10.10.10.11"]
  signatures:
    - name: 268_bytes
      length: 268
snapshot_interval: 5s
`

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1414, cfg.Engine.ServicePort)
	assert.Equal(t, DefaultSampleSize, cfg.Engine.SampleSize)
	assert.Equal(t, 1, cfg.Engine.NumWorkers)
	assert.Equal(t, 1, cfg.Engine.FlowShards)
	assert.Len(t, cfg.Engine.EndpointGroups, 2)
	assert.Equal(t, 5*time.Second, cfg.Interval())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParse_ConfigErrors(t *testing.T) {
	cases := map[string]string{
		"zero port": `
engine:
  service_port: 0
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]`,
		"negative port": `
engine:
  service_port: -5
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]`,
		"no groups": `
engine:
  service_port: 1414`,
		"negative sample": `
engine:
  service_port: 1414
  sample_size: -1
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]`,
		"duplicate signature": `
engine:
  service_port: 1414
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]
  signatures: [{name: s, length: 1}, {name: s, length: 2}]`,
		"zero length signature": `
engine:
  service_port: 1414
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]
  signatures: [{name: s, length: 0}]`,
		"bad interval": `
engine:
  service_port: 1414
  endpoint_groups: [{name: A, addresses: ["1.1.1.1"]}]
snapshot_interval: soon`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfig)
		})
	}
}

func TestInterval_Default(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 30*time.Second, cfg.Interval())
}

func TestLoadConfig_ShippedConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Engine.EndpointGroups, 3)
	assert.Len(t, cfg.Engine.Signatures, 5)
	assert.Equal(t, 268, cfg.Engine.Signatures[0].Length)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, "sqlite", cfg.API.HistorySource)
}
