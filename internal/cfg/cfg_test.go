package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		EscalationStage1Min:   15,
		EscalationStage2Min:   45,
		NotifyAttempts:        3,
		MinViableScore:        0.3,
		DirectoryCacheTTLSec:  30,
		SnoozeSweepSeconds:    60,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.EscalationStage1Min != 15 {
		t.Errorf("EscalationStage1Min = %d, want 15", c.EscalationStage1Min)
	}
	if c.EscalationStage2Min != 45 {
		t.Errorf("EscalationStage2Min = %d, want 45", c.EscalationStage2Min)
	}
	if c.NotifyAttempts != 3 {
		t.Errorf("NotifyAttempts = %d, want 3", c.NotifyAttempts)
	}
	if c.MinViableScore != 0.3 {
		t.Errorf("MinViableScore = %g, want 0.3", c.MinViableScore)
	}
	if c.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", c.DatabaseURL)
	}

	// Defaults must validate on their own.
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/careops",
		"-auth-token", "secret",
		"-webhook-url", "https://hooks.example.com/notify",
		"-escalation-stage1-minutes", "5",
		"-escalation-stage2-minutes", "20",
		"-notify-attempts", "5",
		"-min-viable-score", "0.5",
		"-directory-cache-ttl-seconds", "0",
		"-snooze-sweep-seconds", "10",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/careops" {
		t.Errorf("DatabaseURL = %q, want %q", c.DatabaseURL, "postgres://localhost/careops")
	}
	if c.AuthToken != "secret" {
		t.Errorf("AuthToken = %q, want %q", c.AuthToken, "secret")
	}
	if c.WebhookURL != "https://hooks.example.com/notify" {
		t.Errorf("WebhookURL = %q, want %q", c.WebhookURL, "https://hooks.example.com/notify")
	}
	if c.EscalationStage1Min != 5 {
		t.Errorf("EscalationStage1Min = %d, want 5", c.EscalationStage1Min)
	}
	if c.EscalationStage2Min != 20 {
		t.Errorf("EscalationStage2Min = %d, want 20", c.EscalationStage2Min)
	}
	if c.NotifyAttempts != 5 {
		t.Errorf("NotifyAttempts = %d, want 5", c.NotifyAttempts)
	}
	if c.MinViableScore != 0.5 {
		t.Errorf("MinViableScore = %g, want 0.5", c.MinViableScore)
	}
	if c.DirectoryCacheTTLSec != 0 {
		t.Errorf("DirectoryCacheTTLSec = %d, want 0", c.DirectoryCacheTTLSec)
	}
	if c.SnoozeSweepSeconds != 10 {
		t.Errorf("SnoozeSweepSeconds = %d, want 10", c.SnoozeSweepSeconds)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "minimum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 1
				c.ShutdownBudgetSeconds = 2
				c.APIPort = 1
				c.EscalationStage1Min = 1
				c.EscalationStage2Min = 1
				c.NotifyAttempts = 1
				c.MinViableScore = 0
				c.DirectoryCacheTTLSec = 0
				c.SnoozeSweepSeconds = 1
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 299
				c.ShutdownBudgetSeconds = 300
				c.APIPort = 65535
				c.EscalationStage1Min = 1440
				c.EscalationStage2Min = 1440
				c.NotifyAttempts = 10
				c.MinViableScore = 1
				c.SnoozeSweepSeconds = 3600
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			mutate:    func(c *Config) { c.DrainSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			mutate:    func(c *Config) { c.DrainSeconds = -1 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name: "drain above max",
			mutate: func(c *Config) {
				c.DrainSeconds = 301
				c.ShutdownBudgetSeconds = 302
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 301 },
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name: "budget equals drain",
			mutate: func(c *Config) {
				c.DrainSeconds = 60
				c.ShutdownBudgetSeconds = 60
			},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name: "budget less than drain",
			mutate: func(c *Config) {
				c.DrainSeconds = 60
				c.ShutdownBudgetSeconds = 30
			},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			mutate:    func(c *Config) { c.APIPort = 0 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			mutate:    func(c *Config) { c.APIPort = 65536 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Escalation timers
		{
			name:      "stage one zero",
			mutate:    func(c *Config) { c.EscalationStage1Min = 0 },
			wantErr:   true,
			errSubstr: []string{"ESCALATION_STAGE1_MINUTES"},
		},
		{
			name:      "stage one above max",
			mutate:    func(c *Config) { c.EscalationStage1Min = 1441 },
			wantErr:   true,
			errSubstr: []string{"ESCALATION_STAGE1_MINUTES"},
		},
		{
			name:      "stage two zero",
			mutate:    func(c *Config) { c.EscalationStage2Min = 0 },
			wantErr:   true,
			errSubstr: []string{"ESCALATION_STAGE2_MINUTES"},
		},
		// Notification delivery
		{
			name:      "notify attempts zero",
			mutate:    func(c *Config) { c.NotifyAttempts = 0 },
			wantErr:   true,
			errSubstr: []string{"NOTIFY_ATTEMPTS"},
		},
		{
			name:      "notify attempts above max",
			mutate:    func(c *Config) { c.NotifyAttempts = 11 },
			wantErr:   true,
			errSubstr: []string{"NOTIFY_ATTEMPTS"},
		},
		// Assignment scoring
		{
			name:      "score negative",
			mutate:    func(c *Config) { c.MinViableScore = -0.1 },
			wantErr:   true,
			errSubstr: []string{"MIN_VIABLE_SCORE"},
		},
		{
			name:      "score above one",
			mutate:    func(c *Config) { c.MinViableScore = 1.1 },
			wantErr:   true,
			errSubstr: []string{"MIN_VIABLE_SCORE"},
		},
		// Cache and sweep
		{
			name:      "cache TTL negative",
			mutate:    func(c *Config) { c.DirectoryCacheTTLSec = -1 },
			wantErr:   true,
			errSubstr: []string{"DIRECTORY_CACHE_TTL_SECONDS"},
		},
		{
			name:      "sweep zero",
			mutate:    func(c *Config) { c.SnoozeSweepSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"SNOOZE_SWEEP_SECONDS"},
		},
		{
			name:      "sweep above max",
			mutate:    func(c *Config) { c.SnoozeSweepSeconds = 3601 },
			wantErr:   true,
			errSubstr: []string{"SNOOZE_SWEEP_SECONDS"},
		},
		// Error accumulation: all numeric fields invalid
		{
			name: "all fields invalid",
			mutate: func(c *Config) {
				*c = Config{MinViableScore: -1}
			},
			wantErr: true,
			errSubstr: []string{
				"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT",
				"ESCALATION_STAGE1_MINUTES", "ESCALATION_STAGE2_MINUTES",
				"NOTIFY_ATTEMPTS", "MIN_VIABLE_SCORE", "SNOOZE_SWEEP_SECONDS",
			},
		},
		// Extreme values
		{
			name: "extreme negative values",
			mutate: func(c *Config) {
				c.DrainSeconds = math.MinInt32
				c.ShutdownBudgetSeconds = math.MinInt32
				c.APIPort = math.MinInt32
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validBase()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		score               float64
		sweep               int
	}{
		{60, 90, 8080, 0.3, 60},
		{1, 2, 1, 0, 1},
		{299, 300, 65535, 1, 3600},
		{0, 0, 0, -1, 0},
		{-1, -1, -1, 2, -1},
		{300, 300, 65535, 0.5, 60},
		{301, 302, 65536, 0.3, 3601},
		{150, 100, 8080, 0.3, 60},
		{math.MinInt32, math.MinInt32, math.MinInt32, -0.5, math.MinInt32},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, 1.5, math.MaxInt32},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.score, s.sweep)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, score float64, sweep int) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.MinViableScore = score
		c.SnoozeSweepSeconds = sweep
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		scoreOK := score >= 0 && score <= 1
		sweepOK := sweep >= 1 && sweep <= 3600

		allValid := drainOK && budgetOK && portOK && crossOK && scoreOK && sweepOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
