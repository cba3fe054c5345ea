package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/copyleftdev/qnopt/internal/logging"
	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/solve"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	// Logging.Level defaults to debug in development and info elsewhere.
	Logging      logging.Config
	Optimization struct {
		// WorkerCount bounds the number of solves running at once.
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"10"`
		// MaxJobs caps unfinished jobs and the finished jobs kept for status queries.
		MaxJobs int `env:"OPT_MAX_JOBS" envDefault:"1000"`
	}
	// Solver holds the defaults for requests that leave a field empty.
	Solver struct {
		GradTol       float64 `env:"SOLVER_GRAD_TOL" envDefault:"1e-8"`
		StepTol       float64 `env:"SOLVER_STEP_TOL" envDefault:"1e-8"`
		FuncTol       float64 `env:"SOLVER_FUNC_TOL" envDefault:"1e-12"`
		MaxIterations int     `env:"SOLVER_MAX_ITERATIONS" envDefault:"1000"`
		Memory        int     `env:"SOLVER_MEMORY" envDefault:"10"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env parsing cannot.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("HTTP_PORT %d out of range", c.HTTP.Port))
	}
	if c.Optimization.WorkerCount <= 0 {
		result = multierror.Append(result, fmt.Errorf("OPT_WORKER_COUNT must be positive"))
	}
	if c.Optimization.MaxJobs <= 0 {
		result = multierror.Append(result, fmt.Errorf("OPT_MAX_JOBS must be positive"))
	}
	if c.Solver.Memory <= 0 {
		result = multierror.Append(result, fmt.Errorf("SOLVER_MEMORY must be positive"))
	}
	if err := c.Logging.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.SolverOptions().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// SolverOptions returns the configured stopping criteria.
func (c *Config) SolverOptions() optimization.Options {
	return optimization.Options{
		GradTol:       c.Solver.GradTol,
		StepTol:       c.Solver.StepTol,
		FuncTol:       c.Solver.FuncTol,
		MaxIterations: c.Solver.MaxIterations,
	}
}

// SolveDefaults returns the defaults applied to incoming solve requests.
func (c *Config) SolveDefaults() solve.Defaults {
	return solve.Defaults{Options: c.SolverOptions(), Memory: c.Solver.Memory}
}
