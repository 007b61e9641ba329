package domain

import "testing"

func TestValidateTargetHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"192.168.1.5", true},
		{"192.168.1.0/24", true},
		{"example.com", true},
		{"", false},
		{"192.168.1.0/0", false},
		{"not a hostname!", false},
	}

	for _, tt := range tests {
		if got := ValidateTargetHost(tt.host); got != tt.want {
			t.Errorf("ValidateTargetHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestValidatePorts(t *testing.T) {
	tests := []struct {
		name  string
		ports []int
		want  bool
	}{
		{"empty", nil, false},
		{"valid", []int{22, 80, 443}, true},
		{"zero rejected", []int{0}, false},
		{"too large rejected", []int{65536}, false},
		{"boundary valid", []int{1, 65535}, true},
	}

	for _, tt := range tests {
		if got := ValidatePorts(tt.ports); got != tt.want {
			t.Errorf("%s: ValidatePorts(%v) = %v, want %v", tt.name, tt.ports, got, tt.want)
		}
	}
}

func TestPortListRange(t *testing.T) {
	got := PortListRange([]int{22, 80, 443})
	want := "T:22,T:80,T:443"
	if got != want {
		t.Errorf("PortListRange() = %q, want %q", got, want)
	}
}

func TestCriticalityWeight(t *testing.T) {
	tests := []struct {
		c    Criticality
		want int
	}{
		{CriticalityCritical, 4},
		{CriticalityHigh, 3},
		{CriticalityMedium, 2},
		{CriticalityLow, 1},
		{Criticality("unknown"), 0},
	}

	for _, tt := range tests {
		if got := tt.c.Weight(); got != tt.want {
			t.Errorf("%s.Weight() = %d, want %d", tt.c, got, tt.want)
		}
	}
}
