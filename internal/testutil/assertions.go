package testutil

import (
	"testing"

	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/stretchr/testify/require"
)

// InstanceReport finds an instance in a report by its ID and fails the test
// when it is missing.
func InstanceReport(t *testing.T, result *HarnessResult, instance string) verdict.InstanceReport {
	t.Helper()
	require.NotNil(t, result.Report, "run produced no report: %v", result.Err)
	for _, ir := range result.Report.Instances {
		if ir.Instance == instance {
			return ir
		}
	}
	require.FailNow(t, "instance not in report", "instance %q", instance)
	return verdict.InstanceReport{}
}

// AssertStatus checks the terminal status of one instance.
func AssertStatus(t *testing.T, result *HarnessResult, instance string, want node.Status) {
	t.Helper()
	got := InstanceReport(t, result, instance)
	require.Equal(t, want, got.Status, "instance %s: reason=%q error=%q", instance, got.Reason, got.Error)
}

// AssertStarted checks that a step log line for the instance was emitted,
// which only happens when the instance was dispatched.
func AssertStarted(t *testing.T, result *HarnessResult, instance string) {
	t.Helper()
	require.Contains(t, result.LogOutput, "instance="+instance,
		"expected log output for instance %q was not found in logs", instance)
}
