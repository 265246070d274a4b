package cfg

import (
	"flag"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ConfidenceThreshold:   0.7,
		ModelTimeoutSeconds:   2,
		FailSafeDepartment:    "Emergency",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse() = %v", err)
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %g, want 0.7", c.ConfidenceThreshold)
	}
	if c.FailSafeDepartment != "Emergency" {
		t.Errorf("FailSafeDepartment = %q, want Emergency", c.FailSafeDepartment)
	}
	if c.ClassifyOnOverride {
		t.Error("ClassifyOnOverride should default to false")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"drain zero", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"drain too large", func(c *Config) { c.DrainSeconds = 301; c.ShutdownBudgetSeconds = 302 }, "DRAIN_SECONDS"},
		{"budget zero", func(c *Config) { c.ShutdownBudgetSeconds = 0 }, "SHUTDOWN_BUDGET_SECONDS"},
		{"budget not above drain", func(c *Config) { c.ShutdownBudgetSeconds = 60 }, "must be greater than DRAIN_SECONDS"},
		{"port zero", func(c *Config) { c.APIPort = 0 }, "HTTP_PORT"},
		{"port too large", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"threshold zero", func(c *Config) { c.ConfidenceThreshold = 0 }, "CONFIDENCE_THRESHOLD"},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.2 }, "CONFIDENCE_THRESHOLD"},
		{"model timeout zero", func(c *Config) { c.ModelTimeoutSeconds = 0 }, "MODEL_TIMEOUT_SECONDS"},
		{"model timeout too large", func(c *Config) { c.ModelTimeoutSeconds = 61 }, "MODEL_TIMEOUT_SECONDS"},
		{"model endpoint without scheme", func(c *Config) { c.ModelEndpoint = "model.internal:9000" }, "MODEL_ENDPOINT"},
		{"model endpoint https", func(c *Config) { c.ModelEndpoint = "https://model.internal:9000" }, ""},
		{"failsafe department empty", func(c *Config) { c.FailSafeDepartment = "" }, "FAILSAFE_DEPARTMENT"},
		{"threshold one is allowed", func(c *Config) { c.ConfidenceThreshold = 1 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()

			if tt.errSubstr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q missing %q", err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.APIPort = 0
	c.ConfidenceThreshold = 5
	c.FailSafeDepartment = ""

	err := c.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"HTTP_PORT", "CONFIDENCE_THRESHOLD", "FAILSAFE_DEPARTMENT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func FuzzValidate(f *testing.F) {
	f.Add(60, 90, 8080, 0.7, 2)
	f.Add(0, 0, 0, 0.0, 0)
	f.Add(300, 301, 65535, 1.0, 60)
	f.Add(-1, 500, 99999, 2.5, -7)

	f.Fuzz(func(t *testing.T, drain, budget, port int, threshold float64, modelTimeout int) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			ConfidenceThreshold:   threshold,
			ModelTimeoutSeconds:   modelTimeout,
			FailSafeDepartment:    "Emergency",
		}

		err := c.Validate()

		inRange := drain >= 1 && drain <= 300 &&
			budget >= 1 && budget <= 300 && budget > drain &&
			port >= 1 && port <= 65535 &&
			threshold > 0 && threshold <= 1 &&
			modelTimeout >= 1 && modelTimeout <= 60

		if inRange && err != nil {
			t.Errorf("valid config rejected: %v", err)
		}
		if !inRange && err == nil {
			t.Errorf("invalid config accepted: %+v", c)
		}
	})
}
