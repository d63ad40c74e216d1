package hostinfo

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"dispatch-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// HostInfo contains host system information captured once at startup. The
// affinity controller validates its pin target against OnlineCPUs, and the
// result exporter attaches the rest as run metadata.
type HostInfo struct {
	Hostname      string
	OSInfo        string
	KernelVersion string
	CPUVendor     string
	CPUModel      string
	OnlineCPUs    int
}

var (
	globalHostInfo *HostInfo
	hostInfoOnce   sync.Once
)

// Get returns the global host information, initializing it on first call.
func Get() *HostInfo {
	hostInfoOnce.Do(func() {
		globalHostInfo = collect()
	})
	return globalHostInfo
}

func collect() *HostInfo {
	logger := logging.GetLogger()

	info := &HostInfo{
		OSInfo:     runtime.GOOS + "/" + runtime.GOARCH,
		OnlineCPUs: runtime.NumCPU(),
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	info.Hostname = hostname

	if data, err := os.ReadFile("/proc/version"); err == nil {
		parts := strings.Fields(string(data))
		if len(parts) >= 3 {
			info.KernelVersion = parts[2]
		}
	}
	if info.KernelVersion == "" {
		info.KernelVersion = "unknown"
	}

	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "vendor_id") {
				if parts := strings.Split(line, ":"); len(parts) >= 2 {
					info.CPUVendor = strings.TrimSpace(parts[1])
				}
			} else if strings.HasPrefix(line, "model name") {
				if parts := strings.Split(line, ":"); len(parts) >= 2 {
					info.CPUModel = strings.TrimSpace(parts[1])
				}
			}
			if info.CPUVendor != "" && info.CPUModel != "" {
				break
			}
		}
	}
	if info.CPUVendor == "" {
		info.CPUVendor = "unknown"
	}
	if info.CPUModel == "" {
		info.CPUModel = "unknown"
	}

	logger.WithFields(logrus.Fields{
		"hostname":    info.Hostname,
		"cpu_model":   info.CPUModel,
		"online_cpus": info.OnlineCPUs,
	}).Debug("Host information collected")

	return info
}
