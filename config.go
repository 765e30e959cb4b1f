package testqueue

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-testqueue/flags"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	Role          flags.RoleType
	Classes       []string // Classes to submit; empty selects the planned classes
	Tag           string
	PlanFile      string
	RedisURL      string // Empty selects the in-process queue (local role only)
	QueueName     string
	Workers       int
	Run           types.RunConfig
	JobTTL        time.Duration
	ResultTimeout time.Duration
	RunInterval   time.Duration // Interval between runs
	RunOnce       bool          // Exit after one run
	PostgresURL   string
	HealthzPort   int
	ShowDetails   bool
	Color         bool

	MetricsConfig opmetrics.CLIConfig
	Log           log.Logger
}

// Check validates the combination of settings
func (c *Config) Check() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid role: %q", c.Role)
	}
	if c.RedisURL == "" && c.Role != flags.RoleLocal {
		return fmt.Errorf("redis url is required by the %s role", c.Role)
	}
	if c.Role == flags.RoleWorker && c.RunInterval > 0 {
		return errors.New("run interval has no effect on the worker role")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.JobTTL < 0 || c.ResultTimeout < 0 || c.RunInterval < 0 {
		return errors.New("durations cannot be negative")
	}
	if err := c.Run.Validate(); err != nil {
		return err
	}
	return c.MetricsConfig.Check()
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	var planFile string
	if p := ctx.String(flags.PlanFile.Name); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan file '%s': %w", p, err)
		}
		planFile = abs
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	cfg := &Config{
		Role:      flags.RoleType(ctx.String(flags.Role.Name)),
		Classes:   ctx.StringSlice(flags.Classes.Name),
		Tag:       ctx.String(flags.Tag.Name),
		PlanFile:  planFile,
		RedisURL:  ctx.String(flags.RedisURL.Name),
		QueueName: ctx.String(flags.QueueName.Name),
		Workers:   ctx.Int(flags.Workers.Name),
		Run: types.RunConfig{
			TestTimeout: ctx.Duration(flags.TestTimeout.Name),
			Sequential:  ctx.Bool(flags.Sequential.Name),
			Concurrency: ctx.Int(flags.Concurrency.Name),
		},
		JobTTL:        ctx.Duration(flags.JobTTL.Name),
		ResultTimeout: ctx.Duration(flags.ResultTimeout.Name),
		RunInterval:   runInterval,
		RunOnce:       runInterval == 0,
		PostgresURL:   ctx.String(flags.PostgresURL.Name),
		HealthzPort:   ctx.Int(flags.HealthzPort.Name),
		ShowDetails:   ctx.Bool(flags.ShowDetails.Name),
		Color:         oplog.ReadCLIConfig(ctx).Color,
		MetricsConfig: opmetrics.ReadCLIConfig(ctx),
		Log:           log,
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}
