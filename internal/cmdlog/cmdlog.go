package cmdlog

import (
	"plumage/internal/logging"
	"plumage/internal/metrics"
)

// Run executes one CLI command body, pairing metrics with a log line.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error()})
	} else {
		logging.Info(cmd+"_ok", nil)
	}
	return err
}
