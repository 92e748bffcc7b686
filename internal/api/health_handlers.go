package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/biblioapp/biblio/internal/state"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

var statusRank = map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status: statusHealthy,
		Components: map[string]ComponentHealth{
			"state":     s.checkStateStore(ctx),
			"libraries": s.checkLibraries(ctx),
			"sessions":  s.checkSessions(),
		},
	}
	for _, c := range resp.Components {
		if statusRank[c.Status] > statusRank[resp.Status] {
			resp.Status = c.Status
		}
	}
	return &HealthOutput{Body: resp}, nil
}

// timed runs check and stamps its latency. A non-nil error turns into unhealthy with failMsg.
func timed(failMsg string, check func() (ComponentHealth, error)) ComponentHealth {
	start := time.Now()
	h, err := check()
	if err != nil {
		h = ComponentHealth{Status: statusUnhealthy, Message: failMsg}
	}
	h.Latency = time.Since(start).String()
	return h
}

func (s *Server) checkStateStore(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "state store not configured"}
	}
	return timed("state store read failed", func() (ComponentHealth, error) {
		n, err := s.store.Count(ctx, state.ScopeSession)
		return ComponentHealth{Status: statusHealthy, Message: pluralize(n, "stored session", "stored sessions")}, err
	})
}

// checkLibraries lists the library root. An empty root is degraded, not unhealthy.
func (s *Server) checkLibraries(ctx context.Context) ComponentHealth {
	if s.library == nil {
		return ComponentHealth{Status: statusDegraded, Message: "record source not configured"}
	}
	return timed("library root unreadable", func() (ComponentHealth, error) {
		libs, err := s.library.Libraries(ctx)
		if len(libs) == 0 {
			return ComponentHealth{Status: statusDegraded, Message: "no libraries found"}, err
		}
		return ComponentHealth{Status: statusHealthy, Message: pluralize(len(libs), "library", "libraries")}, err
	})
}

func (s *Server) checkSessions() ComponentHealth {
	if s.sessions == nil {
		return ComponentHealth{Status: statusDegraded, Message: "session manager not configured"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: pluralize(s.sessions.Len(), "live session", "live sessions"),
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
