package testqueue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/flags"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// parseConfig runs args through a cli app carrying every flag and returns the resulting config
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := &cli.App{
		Flags: cliapp.ProtectFlags(flags.Flags),
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"op-testqueue"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	assert.Equal(t, flags.RoleLocal, cfg.Role)
	assert.Empty(t, cfg.Classes)
	assert.Empty(t, cfg.PlanFile)
	assert.Equal(t, "op-testqueue", cfg.QueueName)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Run.TestTimeout)
	assert.False(t, cfg.Run.Sequential)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, 8080, cfg.HealthzPort)
	assert.NotNil(t, cfg.Log)
}

func TestNewConfigFromFlags(t *testing.T) {
	cfg, err := parseConfig(t,
		"--role", "submit",
		"--redis-url", "redis://localhost:6379/0",
		"--classes", "ping",
		"--classes", "lifecycle",
		"--tag", "nightly",
		"--plan", "testdata/plan.yaml",
		"--sequential",
		"--concurrency", "4",
		"--test-timeout", "1m",
		"--job-ttl", "10m",
		"--result-timeout", "15m",
		"--run-interval", "1h",
	)
	require.NoError(t, err)

	abs, err := filepath.Abs("testdata/plan.yaml")
	require.NoError(t, err)

	assert.Equal(t, flags.RoleSubmit, cfg.Role)
	assert.Equal(t, []string{"ping", "lifecycle"}, cfg.Classes)
	assert.Equal(t, "nightly", cfg.Tag)
	assert.Equal(t, abs, cfg.PlanFile)
	assert.True(t, cfg.Run.Sequential)
	assert.Equal(t, 4, cfg.Run.Concurrency)
	assert.Equal(t, time.Minute, cfg.Run.TestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.JobTTL)
	assert.Equal(t, 15*time.Minute, cfg.ResultTimeout)
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.False(t, cfg.RunOnce)
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "worker without redis",
			args:   []string{"--role", "worker"},
			errMsg: "redis url is required by the worker role",
		},
		{
			name:   "submit without redis",
			args:   []string{"--role", "submit"},
			errMsg: "redis url is required by the submit role",
		},
		{
			name:   "worker with run interval",
			args:   []string{"--role", "worker", "--redis-url", "redis://localhost:6379", "--run-interval", "1m"},
			errMsg: "run interval has no effect",
		},
		{
			name:   "zero workers",
			args:   []string{"--workers", "0"},
			errMsg: "workers must be positive",
		},
		{
			name:   "zero test timeout",
			args:   []string{"--test-timeout", "0s"},
			errMsg: "test timeout must be positive",
		},
		{
			name:   "negative concurrency",
			args:   []string{"--concurrency", "-1"},
			errMsg: "concurrency cannot be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
