package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_TESTQUEUE"

// RoleType selects what the process does with the job queue
type RoleType string

const (
	RoleLocal  RoleType = "local"  // Enqueue and consume in-process
	RoleWorker RoleType = "worker" // Consume jobs until stopped
	RoleSubmit RoleType = "submit" // Enqueue jobs and wait for remote workers
)

func (r RoleType) String() string {
	return string(r)
}

func (r RoleType) IsValid() bool {
	switch r {
	case RoleLocal, RoleWorker, RoleSubmit:
		return true
	default:
		return false
	}
}

func ValidRoles() []RoleType {
	return []RoleType{RoleLocal, RoleWorker, RoleSubmit}
}

func validateRole(value string) error {
	if RoleType(value).IsValid() {
		return nil
	}
	valid := make([]string, 0, len(ValidRoles()))
	for _, r := range ValidRoles() {
		valid = append(valid, r.String())
	}
	return fmt.Errorf("role must be one of: %s", strings.Join(valid, ", "))
}

var (
	Role = &cli.StringFlag{
		Name:    "role",
		Value:   RoleLocal.String(),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ROLE"),
		Usage:   "Process role: 'local' runs classes in-process, 'worker' consumes jobs, 'submit' enqueues jobs and waits for results",
		Action: func(_ *cli.Context, value string) error {
			return validateRole(value)
		},
	}
	Classes = &cli.StringSliceFlag{
		Name:    "classes",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CLASSES"),
		Usage:   "Test classes to run. Defaults to the classes of the plan, or every registered class",
	}
	Tag = &cli.StringFlag{
		Name:    "tag",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TAG"),
		Usage:   "Tag attached to every submitted job",
	}
	PlanFile = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to a YAML or TOML plan file overriding class settings (eg. 'plan.yaml')",
	}
	RedisURL = &cli.StringFlag{
		Name:    "redis-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_URL"),
		Usage:   "Redis URL of the shared job queue. Required by the worker and submit roles",
	}
	QueueName = &cli.StringFlag{
		Name:    "queue-name",
		Value:   "op-testqueue",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "QUEUE_NAME"),
		Usage:   "Key prefix of the Redis job queue",
	}
	Workers = &cli.IntFlag{
		Name:    "workers",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKERS"),
		Usage:   "Number of jobs consumed concurrently",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Maximum test cases in flight per concurrent class (0 = unbounded)",
	}
	Sequential = &cli.BoolFlag{
		Name:    "sequential",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SEQUENTIAL"),
		Usage:   "Run the test cases of classes that don't declare a policy one at a time",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   types.DefaultTestTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_TIMEOUT"),
		Usage:   "Timeout of every lifecycle hook (e.g. '30s', '5m')",
	}
	JobTTL = &cli.DurationFlag{
		Name:    "job-ttl",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "JOB_TTL"),
		Usage:   "How long a job may wait in the queue before it expires. 0 disables expiry",
	}
	ResultTimeout = &cli.DurationFlag{
		Name:    "result-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESULT_TIMEOUT"),
		Usage:   "How long to wait for the results of submitted jobs. 0 waits until interrupted",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	PostgresURL = &cli.StringFlag{
		Name:    "postgres-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POSTGRES_URL"),
		Usage:   "Postgres connection string. When set, workers store every job result",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Port of the /healthz endpoint. 0 disables it",
	}
	ShowDetails = &cli.BoolFlag{
		Name:    "show-details",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_DETAILS"),
		Usage:   "Print the trace of every failing test after the results table",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Role,
	Classes,
	Tag,
	PlanFile,
	RedisURL,
	QueueName,
	Workers,
	Concurrency,
	Sequential,
	TestTimeout,
	JobTTL,
	ResultTimeout,
	RunInterval,
	PostgresURL,
	HealthzPort,
	ShowDetails,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
