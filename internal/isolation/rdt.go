package isolation

import (
	"fmt"
	"os"

	"dispatch-bench/internal/logging"

	"github.com/intel/goresctrl/pkg/rdt"
)

// AssignRDTClass puts the harness process into a pre-provisioned RDT class
// of service, reducing last-level-cache interference from co-running
// workloads. Best-effort: hosts without resctrl support still produce valid
// samples, just with more ambient noise, so failures are reported to the
// caller to log as warnings rather than abort the run.
func AssignRDTClass(className string) error {
	logger := logging.GetLogger()

	if err := rdt.Initialize(""); err != nil {
		return fmt.Errorf("RDT not available: %w", err)
	}

	class, exists := rdt.GetClass(className)
	if !exists {
		return fmt.Errorf("RDT class %q not found", className)
	}

	pid := fmt.Sprintf("%d", os.Getpid())
	if err := class.AddPids(pid); err != nil {
		return fmt.Errorf("failed to assign pid %s to RDT class %q: %w", pid, className, err)
	}

	logger.WithField("class", className).Info("Assigned harness process to RDT class")
	return nil
}
