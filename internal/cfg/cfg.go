package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	RulesPath             string
	ConfidenceThreshold   float64
	ModelEndpoint         string
	ModelTimeoutSeconds   int
	ClassifyOnOverride    bool
	FailSafeDepartment    string
	DatabaseURL           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API routes (empty = no auth)")
	fs.StringVar(&c.RulesPath, "rules-path", "", "path to YAML safety rule table (empty = built-in table)")
	fs.Float64Var(&c.ConfidenceThreshold, "confidence-threshold", 0.7, "confidence below which classifier decisions are escalated one risk step (0..1)")
	fs.StringVar(&c.ModelEndpoint, "model-endpoint", "", "model server base URL (empty = built-in baseline classifier)")
	fs.IntVar(&c.ModelTimeoutSeconds, "model-timeout-seconds", 2, "per-call classifier timeout in seconds (1..60)")
	fs.BoolVar(&c.ClassifyOnOverride, "classify-on-override", false, "run the classifier on rule-override decisions for advisory logging")
	fs.StringVar(&c.FailSafeDepartment, "failsafe-department", "Emergency", "department routed when the classifier is unavailable")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for override/fail-safe notifications")
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

	// Threshold of 0 would disable escalation entirely; 1 escalates everything.
	if !(c.ConfidenceThreshold > 0 && c.ConfidenceThreshold <= 1) {
		errs = append(errs, fmt.Errorf("invalid CONFIDENCE_THRESHOLD %g (must be in (0..1])", c.ConfidenceThreshold))
	}

	if c.ModelTimeoutSeconds <= 0 || c.ModelTimeoutSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid MODEL_TIMEOUT_SECONDS %d (must be 1..60)", c.ModelTimeoutSeconds))
	}

	if c.ModelEndpoint != "" && !strings.HasPrefix(c.ModelEndpoint, "http://") && !strings.HasPrefix(c.ModelEndpoint, "https://") {
		errs = append(errs, fmt.Errorf("invalid MODEL_ENDPOINT %q (must be an http(s) URL)", c.ModelEndpoint))
	}

	if c.FailSafeDepartment == "" {
		errs = append(errs, errors.New("FAILSAFE_DEPARTMENT must not be empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
