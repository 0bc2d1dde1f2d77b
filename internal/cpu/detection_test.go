package cpu

import "testing"

func TestCalculateOptimalJobs_WorkloadTypes(t *testing.T) {
	d := NewDetector()
	info, err := d.DetectCPU()
	if err != nil {
		t.Fatalf("DetectCPU: %v", err)
	}

	cases := []struct {
		workload string
		want     int
	}{
		{"cpu-intensive", info.PhysicalCores},
		{"io-intensive", info.LogicalCores * 2},
		{"balanced", info.LogicalCores},
		{"unknown-workload", info.LogicalCores},
	}
	for _, c := range cases {
		got, err := d.CalculateOptimalJobs(c.workload, 0)
		if err != nil {
			t.Fatalf("CalculateOptimalJobs(%q): %v", c.workload, err)
		}
		if got != c.want {
			t.Errorf("CalculateOptimalJobs(%q) = %d, want %d", c.workload, got, c.want)
		}
	}
}

func TestCalculateOptimalJobs_ClampedToMax(t *testing.T) {
	d := NewDetector()
	got, err := d.CalculateOptimalJobs("io-intensive", 2)
	if err != nil {
		t.Fatalf("CalculateOptimalJobs: %v", err)
	}
	if got > 2 {
		t.Errorf("expected jobs clamped to maxJobs=2, got %d", got)
	}
}

func TestCalculateOptimalJobs_NeverBelowOne(t *testing.T) {
	d := NewDetector()
	got, err := d.CalculateOptimalJobs("balanced", 0)
	if err != nil {
		t.Fatalf("CalculateOptimalJobs: %v", err)
	}
	if got < 1 {
		t.Errorf("expected at least 1 job, got %d", got)
	}
}

func TestDetectCPU_CachesResult(t *testing.T) {
	d := NewDetector()
	first, err := d.DetectCPU()
	if err != nil {
		t.Fatalf("DetectCPU: %v", err)
	}
	second, err := d.DetectCPU()
	if err != nil {
		t.Fatalf("DetectCPU: %v", err)
	}
	if first != second {
		t.Error("expected DetectCPU to return the cached *CPUInfo on the second call")
	}
}

func TestFormatCPUInfo_IncludesCoreCounts(t *testing.T) {
	info := &CPUInfo{LogicalCores: 8, PhysicalCores: 4, Architecture: "amd64"}
	out := info.FormatCPUInfo()
	if out == "" {
		t.Fatal("expected non-empty formatted output")
	}
}
