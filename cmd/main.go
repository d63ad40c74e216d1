package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dispatch-bench/internal/artifact"
	_ "dispatch-bench/internal/cases"
	"dispatch-bench/internal/config"
	"dispatch-bench/internal/database"
	"dispatch-bench/internal/device"
	"dispatch-bench/internal/harness"
	"dispatch-bench/internal/hostinfo"
	"dispatch-bench/internal/isolation"
	"dispatch-bench/internal/logging"
	"dispatch-bench/internal/registry"
	"dispatch-bench/internal/stats"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

func main() {
	if err := Execute(); err != nil {
		logging.GetLogger().WithError(err).Fatal("Failed to execute command")
		os.Exit(1)
	}
}

func loadEnvironment() {
	logger := logging.GetLogger()

	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		} else {
			logger.WithField("file", envFile).Debug("Loaded environment variables")
		}
		return
	}

	// Fall back to the application directory
	if execPath, err := os.Executable(); err == nil {
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
			} else {
				logger.WithField("file", envFile).Debug("Loaded environment variables")
			}
		}
	}
}

func databaseConfigFromEnv() (config.DatabaseConfig, error) {
	dbConfig := config.DatabaseConfig{
		Host:   os.Getenv("INFLUXDB_HOST"),
		Name:   os.Getenv("INFLUXDB_BUCKET"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Export: true,
	}

	var missing []string
	if dbConfig.Host == "" {
		missing = append(missing, "INFLUXDB_HOST")
	}
	if dbConfig.Name == "" {
		missing = append(missing, "INFLUXDB_BUCKET")
	}
	if dbConfig.Token == "" {
		missing = append(missing, "INFLUXDB_TOKEN")
	}
	if dbConfig.Org == "" {
		missing = append(missing, "INFLUXDB_ORG")
	}
	if len(missing) > 0 {
		return dbConfig, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return dbConfig, nil
}

func Execute() error {
	loadEnvironment()

	var (
		configFile string
		logLevel   string
		caseName   string
		export     bool

		kernelExecutionTime   int
		numKernels            int
		iterations            int
		inOrderQueue          bool
		discardEvents         bool
		measureCompletionTime bool
		noop                  bool
		pinCPU                int
		enablePerf            bool
		rdtClass              string
		artifactDir           string
	)

	rootCmd := &cobra.Command{
		Use:     "dispatch-bench",
		Short:   "Kernel submission overhead benchmark",
		Long:    "Measures the host-side CPU cost of submitting compute kernels to an asynchronous execution queue",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark case",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return runBenchmark(cfg, caseName, export)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a benchmark configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfigFile(configFile)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered benchmark cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range registry.List() {
				fmt.Printf("%s\t[%s]\n", c.Name, c.Backend)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to benchmark configuration file")
	runCmd.Flags().StringVar(&caseName, "case", "submit_kernel", "Benchmark case to run")
	runCmd.Flags().IntVar(&kernelExecutionTime, "kernel-execution-time", 1, "Device-side busy-work duration hint in microseconds")
	runCmd.Flags().IntVar(&numKernels, "num-kernels", 10, "Kernel submissions per round")
	runCmd.Flags().IntVar(&iterations, "iterations", 10, "Number of measured rounds")
	runCmd.Flags().BoolVar(&inOrderQueue, "in-order-queue", true, "Use an in-order command queue")
	runCmd.Flags().BoolVar(&discardEvents, "discard-events", false, "Do not request completion events per submission")
	runCmd.Flags().BoolVar(&measureCompletionTime, "measure-completion-time", false, "Time until queue drain instead of submission return")
	runCmd.Flags().BoolVar(&noop, "noop", false, "Dry run: validate wiring without touching runtime resources")
	runCmd.Flags().IntVar(&pinCPU, "pin-cpu", config.DefaultPinCPU, "Logical CPU to pin the measuring thread to")
	runCmd.Flags().BoolVar(&enablePerf, "perf", false, "Collect hardware counters on the measuring thread")
	runCmd.Flags().StringVar(&rdtClass, "rdt-class", "", "Assign the harness to an RDT class of service")
	runCmd.Flags().StringVar(&artifactDir, "artifact-dir", "", "Directory holding precompiled kernel binaries")
	runCmd.Flags().BoolVar(&export, "export", false, "Export samples to InfluxDB (requires INFLUXDB_* environment)")

	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to benchmark configuration file")
	validateCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)

	return rootCmd.Execute()
}

// resolveConfig layers CLI flags over the config file: the file establishes
// the run, explicitly-set flags override individual fields.
func resolveConfig(cmd *cobra.Command, configFile string) (*config.BenchmarkConfig, error) {
	var cfg *config.BenchmarkConfig
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if v, err := flags.GetInt("kernel-execution-time"); err == nil && (flags.Changed("kernel-execution-time") || configFile == "") {
		cfg.Case.KernelExecutionTime = v
	}
	if v, err := flags.GetInt("num-kernels"); err == nil && (flags.Changed("num-kernels") || configFile == "") {
		cfg.Case.NumKernels = v
	}
	if v, err := flags.GetInt("iterations"); err == nil && (flags.Changed("iterations") || configFile == "") {
		cfg.Case.Iterations = v
	}
	if v, err := flags.GetBool("in-order-queue"); err == nil && (flags.Changed("in-order-queue") || configFile == "") {
		cfg.Case.InOrderQueue = v
	}
	if v, err := flags.GetBool("discard-events"); err == nil && (flags.Changed("discard-events") || configFile == "") {
		cfg.Case.DiscardEvents = v
	}
	if v, err := flags.GetBool("measure-completion-time"); err == nil && (flags.Changed("measure-completion-time") || configFile == "") {
		cfg.Case.MeasureCompletionTime = v
	}
	if v, err := flags.GetBool("noop"); err == nil && flags.Changed("noop") {
		cfg.Case.Noop = v
	}
	if flags.Changed("pin-cpu") {
		if v, err := flags.GetInt("pin-cpu"); err == nil {
			cfg.Benchmark.PinCPU = &v
		}
	}
	if flags.Changed("perf") {
		if v, err := flags.GetBool("perf"); err == nil {
			cfg.Benchmark.Perf = v
		}
	}
	if flags.Changed("rdt-class") {
		if v, err := flags.GetString("rdt-class"); err == nil {
			cfg.Benchmark.RDTClass = v
		}
	}
	if flags.Changed("artifact-dir") {
		if v, err := flags.GetString("artifact-dir"); err == nil {
			cfg.Benchmark.ArtifactDir = v
		}
	}

	if cfg.Benchmark.LogLevel != "" && !flags.Changed("log-level") {
		if err := logging.SetLogLevel(cfg.Benchmark.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log level in config: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfigFile(configFile string) error {
	logger := logging.GetLogger()

	if _, err := config.LoadConfig(configFile); err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	logger.WithField("config_file", configFile).Info("Configuration is valid")
	return nil
}

func runBenchmark(cfg *config.BenchmarkConfig, caseName string, export bool) error {
	logger := logging.GetLogger()

	benchCase, ok := registry.Lookup(caseName)
	if !ok {
		return fmt.Errorf("unknown benchmark case %q", caseName)
	}

	host := hostinfo.Get()
	logger.WithFields(logrus.Fields{
		"case":        benchCase.Name,
		"backend":     benchCase.Backend,
		"hostname":    host.Hostname,
		"cpu_model":   host.CPUModel,
		"online_cpus": host.OnlineCPUs,
	}).Info("Starting benchmark")

	if cfg.Benchmark.RDTClass != "" {
		if err := isolation.AssignRDTClass(cfg.Benchmark.RDTClass); err != nil {
			logger.WithError(err).Warn("RDT isolation unavailable, continuing without it")
		}
	}

	runtime := device.NewStubRuntime()
	runtime.SimulateExecution = true

	env := registry.Environment{
		Runtime:    runtime,
		Loader:     artifact.NewLoader(cfg.Benchmark.ArtifactDir),
		PinCPU:     cfg.Benchmark.PinCPUIndex(),
		EnablePerf: cfg.Benchmark.Perf,
	}
	runner := benchCase.New(env)

	statistics := stats.New()
	startTime := time.Now()
	outcome := runner(cfg.Case, statistics)
	endTime := time.Now()

	if outcome.Failed() {
		logger.WithField("outcome", outcome.Code.String()).WithError(outcome.Err).Error("Benchmark failed")
		return fmt.Errorf("%s: %w", outcome.Code, outcome.Err)
	}

	if outcome.Code == harness.Nooped {
		logger.Info("Dry run completed, no samples recorded")
		return nil
	}

	if outcome.Err != nil {
		logger.WithError(outcome.Err).Warn("Benchmark completed with teardown errors")
	}

	printSummary(benchCase.Name, statistics, endTime.Sub(startTime))

	if export {
		dbConfig := cfg.Benchmark.Data.DB
		if !dbConfig.Export {
			fromEnv, err := databaseConfigFromEnv()
			if err != nil {
				return err
			}
			dbConfig = fromEnv
		}

		client, err := database.NewInfluxDBClient(dbConfig)
		if err != nil {
			return err
		}
		defer client.Close()

		meta := &database.RunMetadata{
			CaseName:  benchCase.Name,
			Backend:   benchCase.Backend,
			Outcome:   outcome.Code.String(),
			StartTime: startTime,
			EndTime:   endTime,
			Config:    cfg.Case,
		}
		if err := client.WriteRun(meta, statistics); err != nil {
			return err
		}
		logger.Info("Exported run to InfluxDB")
	}

	return nil
}

// printSummary reports the raw samples plus a few aggregates. Aggregation
// lives here in the reporting layer, never in the harness.
func printSummary(caseName string, statistics *stats.Statistics, elapsed time.Duration) {
	samples := statistics.Samples()
	if len(samples) == 0 {
		return
	}

	min, max := samples[0], samples[0]
	sum := 0.0
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	fmt.Printf("\n%s (%s, %s)\n", caseName, statistics.Unit(), statistics.Kind())
	for i, v := range samples {
		fmt.Printf("  round %3d: %10.3f\n", i, v)
	}
	fmt.Printf("  samples=%d min=%.3f avg=%.3f max=%.3f total=%s\n",
		len(samples), min, sum/float64(len(samples)), max, elapsed.Round(time.Millisecond))
}
