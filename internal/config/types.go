package config

// Default processor index for affinity pinning. Core 0 is typically the
// busiest on multi-core hosts, so the harness pins to its neighbor.
const DefaultPinCPU = 1

type BenchmarkConfig struct {
	Benchmark BenchmarkInfo    `yaml:"benchmark"`
	Case      RunConfiguration `yaml:"case"`
}

type BenchmarkInfo struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	LogLevel    string     `yaml:"log_level"`
	PinCPU      *int       `yaml:"pin_cpu"`
	RDTClass    string     `yaml:"rdt_class"`
	Perf        bool       `yaml:"perf"`
	ArtifactDir string     `yaml:"artifact_dir"`
	Data        DataConfig `yaml:"data"`
}

type DataConfig struct {
	DB DatabaseConfig `yaml:"db"`
}

type DatabaseConfig struct {
	Host   string `yaml:"host"`
	Name   string `yaml:"name"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Export bool   `yaml:"export"`
}

// RunConfiguration describes one benchmark invocation. It is constructed
// once from the config file and CLI flags and read-only afterwards.
type RunConfiguration struct {
	KernelExecutionTime   int  `yaml:"kernel_execution_time"`
	NumKernels            int  `yaml:"num_kernels"`
	Iterations            int  `yaml:"iterations"`
	InOrderQueue          bool `yaml:"in_order_queue"`
	DiscardEvents         bool `yaml:"discard_events"`
	MeasureCompletionTime bool `yaml:"measure_completion_time"`
	Noop                  bool `yaml:"noop"`
}

// PinCPUIndex resolves the configured affinity target, falling back to the
// default when the config file leaves it unset.
func (b *BenchmarkInfo) PinCPUIndex() int {
	if b.PinCPU != nil {
		return *b.PinCPU
	}
	return DefaultPinCPU
}

func Default() *BenchmarkConfig {
	return &BenchmarkConfig{
		Benchmark: BenchmarkInfo{
			Name: "submit_kernel",
		},
		Case: RunConfiguration{
			KernelExecutionTime: 1,
			NumKernels:          10,
			Iterations:          10,
			InOrderQueue:        true,
		},
	}
}
