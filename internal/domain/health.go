package domain

// HealthStatus is the outcome of one doctor check.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// HealthCheck is one diagnostic line of `nixsay doctor`.
type HealthCheck struct {
	Name    string
	Status  HealthStatus
	Details string
}

// HealthReport lists checks in a fixed order.
type HealthReport struct {
	Checks []HealthCheck
}

// Worst returns the most severe status in the report.
func (r HealthReport) Worst() HealthStatus {
	worst := HealthOK
	for _, check := range r.Checks {
		switch check.Status {
		case HealthError:
			return HealthError
		case HealthWarn:
			worst = HealthWarn
		}
	}
	return worst
}
