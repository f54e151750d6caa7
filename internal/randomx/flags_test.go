package randomx

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/shizukutanaka/kodama/internal/hardware"
)

func TestNegotiateFlagsRequestsFullMemAndLargePages(t *testing.T) {
	t.Setenv(EnvLight, "")
	t.Setenv(EnvFullMem, "")

	caps := hardware.Detect(zaptest.NewLogger(t))
	flags := NegotiateFlags(caps)

	if !flags.Has(FlagFullMem) {
		t.Error("Expected FULL_MEM to be requested by default")
	}
	if !flags.Has(FlagLargePages) {
		t.Error("Expected LARGE_PAGES to be requested by default")
	}
}

func TestNegotiateFlagsOverrides(t *testing.T) {
	tests := []struct {
		name        string
		light       string
		fullMem     string
		wantFullMem bool
	}{
		{name: "no overrides", light: "", fullMem: "", wantFullMem: true},
		{name: "force light", light: "1", fullMem: "", wantFullMem: false},
		{name: "light zero is off", light: "0", fullMem: "", wantFullMem: true},
		{name: "disable full mem", light: "", fullMem: "0", wantFullMem: false},
		{name: "full mem enabled", light: "", fullMem: "1", wantFullMem: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLight, tt.light)
			t.Setenv(EnvFullMem, tt.fullMem)

			flags := NegotiateFlags(nil)
			if got := flags.Has(FlagFullMem); got != tt.wantFullMem {
				t.Errorf("FULL_MEM = %v, want %v", got, tt.wantFullMem)
			}
		})
	}
}

func TestFlagsString(t *testing.T) {
	if got := Flags(0).String(); got != "NONE" {
		t.Errorf("Flags(0).String() = %q, want NONE", got)
	}
	fl := FlagFullMem | FlagLargePages
	if got := fl.String(); got != "FULL_MEM|LARGE_PAGES" {
		t.Errorf("String() = %q", got)
	}
}
