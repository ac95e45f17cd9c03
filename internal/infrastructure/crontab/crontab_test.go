package crontab

import "testing"

func TestReconcileCronExpr(t *testing.T) {
	tests := []struct {
		name            string
		intervalMinutes int
		want            string
	}{
		{name: "default interval", intervalMinutes: 15, want: "*/15 * * * *"},
		{name: "every minute", intervalMinutes: 1, want: "*/1 * * * *"},
		{name: "just under an hour", intervalMinutes: 59, want: "*/59 * * * *"},
		{name: "exactly an hour moves to hour field", intervalMinutes: 60, want: "0 */1 * * *"},
		{name: "ninety minutes rounds down to hourly", intervalMinutes: 90, want: "0 */1 * * *"},
		{name: "six hours", intervalMinutes: 360, want: "0 */6 * * *"},
		{name: "daily clamps to hour field range", intervalMinutes: 1440, want: "0 */23 * * *"},
		{name: "zero falls back to default", intervalMinutes: 0, want: "*/15 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconcileCronExpr(tt.intervalMinutes); got != tt.want {
				t.Errorf("reconcileCronExpr(%d) = %q, want %q", tt.intervalMinutes, got, tt.want)
			}
		})
	}
}
