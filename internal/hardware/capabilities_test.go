package hardware

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestDetect(t *testing.T) {
	caps := Detect(zaptest.NewLogger(t))

	if caps == nil {
		t.Fatal("Detect returned nil")
	}
	if caps.PhysicalCores < 1 {
		t.Errorf("PhysicalCores = %d, want >= 1", caps.PhysicalCores)
	}
	if caps.LogicalCores < caps.PhysicalCores {
		t.Errorf("LogicalCores = %d below PhysicalCores = %d",
			caps.LogicalCores, caps.PhysicalCores)
	}
	if caps.TotalMemory == 0 {
		t.Error("TotalMemory = 0")
	}
}
