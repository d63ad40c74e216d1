package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"dispatch-bench/internal/logging"

	"gopkg.in/yaml.v3"
)

func LoadConfig(filepath string) (*BenchmarkConfig, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	config := Default()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func Validate(config *BenchmarkConfig) error {
	if config.Benchmark.Name == "" {
		return fmt.Errorf("benchmark name is required")
	}

	if config.Benchmark.PinCPU != nil && *config.Benchmark.PinCPU < 0 {
		return fmt.Errorf("pin_cpu must not be negative")
	}

	c := config.Case
	if c.KernelExecutionTime < 0 {
		return fmt.Errorf("kernel_execution_time must not be negative")
	}
	if c.NumKernels <= 0 {
		return fmt.Errorf("num_kernels must be greater than 0")
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be greater than 0")
	}

	// Export needs a complete database block
	db := config.Benchmark.Data.DB
	if db.Export {
		if db.Host == "" || db.Name == "" || db.Token == "" || db.Org == "" {
			return fmt.Errorf("incomplete database configuration")
		}
	}

	return nil
}
