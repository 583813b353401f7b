package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds the application-level configuration fields, following the
// common cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	AuthToken             string
	WebhookURL            string
	EscalationStage1Min   int
	EscalationStage2Min   int
	NotifyAttempts        int
	MinViableScore        float64
	DirectoryCacheTTLSec  int
	SnoozeSweepSeconds    int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory stores)")
	fs.StringVar(&c.AuthToken, "auth-token", "", "bearer token required on mutating API routes (empty = auth disabled)")
	fs.StringVar(&c.WebhookURL, "webhook-url", "", "webhook URL for escalation notifications (empty = notifications disabled)")
	fs.IntVar(&c.EscalationStage1Min, "escalation-stage1-minutes", 15, "minutes before an unclaimed urgent item escalates to the primary contact (1..1440)")
	fs.IntVar(&c.EscalationStage2Min, "escalation-stage2-minutes", 45, "minutes after stage one before broadcast escalation (1..1440)")
	fs.IntVar(&c.NotifyAttempts, "notify-attempts", 3, "delivery attempts per escalation notification (1..10)")
	fs.Float64Var(&c.MinViableScore, "min-viable-score", 0.3, "minimum assignment score before falling back to the primary caregiver (0..1)")
	fs.IntVar(&c.DirectoryCacheTTLSec, "directory-cache-ttl-seconds", 30, "TTL for cached care circle reads (0 = cache disabled)")
	fs.IntVar(&c.SnoozeSweepSeconds, "snooze-sweep-seconds", 60, "interval between snoozed item wake sweeps (1..3600)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.EscalationStage1Min <= 0 || c.EscalationStage1Min > 1440 {
		errs = append(errs, fmt.Errorf("invalid ESCALATION_STAGE1_MINUTES %d (must be 1..1440)", c.EscalationStage1Min))
	}
	if c.EscalationStage2Min <= 0 || c.EscalationStage2Min > 1440 {
		errs = append(errs, fmt.Errorf("invalid ESCALATION_STAGE2_MINUTES %d (must be 1..1440)", c.EscalationStage2Min))
	}

	if c.NotifyAttempts <= 0 || c.NotifyAttempts > 10 {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_ATTEMPTS %d (must be 1..10)", c.NotifyAttempts))
	}

	if c.MinViableScore < 0 || c.MinViableScore > 1 {
		errs = append(errs, fmt.Errorf("invalid MIN_VIABLE_SCORE %g (must be 0..1)", c.MinViableScore))
	}

	if c.DirectoryCacheTTLSec < 0 {
		errs = append(errs, fmt.Errorf("invalid DIRECTORY_CACHE_TTL_SECONDS %d (must be >= 0)", c.DirectoryCacheTTLSec))
	}

	if c.SnoozeSweepSeconds <= 0 || c.SnoozeSweepSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid SNOOZE_SWEEP_SECONDS %d (must be 1..3600)", c.SnoozeSweepSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
