package observability

// HealthStatus represents the health state of a component or service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes one component, typically a speech-to-text backend.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth aggregates component health.
//
// The service is up when every component is up, down when no component is
// up, and degraded otherwise. A service without components is down.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a ServiceHealth with status down; it stays down
// until a component is added.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusDown,
		Version: version,
	}
}

// AddComponent appends a component and recomputes the overall status.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)

	up := 0
	for _, c := range sh.Components {
		if c.Status == HealthStatusUp {
			up++
		}
	}
	switch up {
	case len(sh.Components):
		sh.Status = HealthStatusUp
	case 0:
		sh.Status = HealthStatusDown
	default:
		sh.Status = HealthStatusDegraded
	}
}

// IsUp reports whether at least part of the service can serve requests.
func (sh *ServiceHealth) IsUp() bool {
	return sh.Status != HealthStatusDown
}
