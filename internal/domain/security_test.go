package domain

import "testing"

func TestParseRiskLevelAndAction(t *testing.T) {
	tests := []struct {
		level  string
		action string
		want   GuardrailAction
		wantLv RiskLevel
	}{
		{level: "Critical", action: "block", want: ActionBlock, wantLv: RiskCritical},
		{level: "medium", action: "", want: ActionConfirm, wantLv: RiskMedium},
		{level: "bogus", action: "", want: ActionAllow, wantLv: RiskSafe},
		{level: "low", action: "ALLOW", want: ActionAllow, wantLv: RiskLow},
	}
	for _, tt := range tests {
		level := ParseRiskLevel(tt.level)
		if level != tt.wantLv {
			t.Fatalf("ParseRiskLevel(%q) = %s, want %s", tt.level, level, tt.wantLv)
		}
		if got := ParseGuardrailAction(tt.action, level); got != tt.want {
			t.Fatalf("ParseGuardrailAction(%q, %s) = %s, want %s", tt.action, level, got, tt.want)
		}
	}
	if !RiskHigh.Exceeds(RiskMedium) || RiskLow.Exceeds(RiskLow) {
		t.Fatal("unexpected severity order")
	}
}

func TestHealthReportWorst(t *testing.T) {
	report := HealthReport{Checks: []HealthCheck{{Status: HealthOK}, {Status: HealthWarn}}}
	if got := report.Worst(); got != HealthWarn {
		t.Fatalf("Worst() = %s, want warn", got)
	}
	report.Checks = append(report.Checks, HealthCheck{Status: HealthError})
	if got := report.Worst(); got != HealthError {
		t.Fatalf("Worst() = %s, want error", got)
	}
	if got := (HealthReport{}).Worst(); got != HealthOK {
		t.Fatalf("empty report Worst() = %s, want ok", got)
	}
}
