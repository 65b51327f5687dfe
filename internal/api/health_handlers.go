package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns companion server health with component checks",
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

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"session": s.checkSession(),
		"search":  s.checkSearchIndex(),
		"events":  s.checkEvents(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

// checkSession reports whether a backend credential is present.
func (s *Server) checkSession() ComponentHealth {
	if s.backend == nil || !s.backend.SignedIn() {
		return ComponentHealth{Status: "degraded", Message: "not signed in"}
	}
	return ComponentHealth{Status: "healthy"}
}

// checkSearchIndex verifies the library index is readable.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.index == nil {
		return ComponentHealth{Status: "degraded", Message: "library index not configured"}
	}

	start := time.Now()
	count, err := s.index.Count()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: "unhealthy", Latency: latency.String(), Message: "library index unreadable"}
	}
	if count == 0 {
		return ComponentHealth{Status: "degraded", Latency: latency.String(), Message: "library index empty, run sync"}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String(), Message: strconv.FormatUint(count, 10) + " books indexed"}
}

func (s *Server) checkEvents() ComponentHealth {
	if s.events == nil {
		return ComponentHealth{Status: "degraded", Message: "event stream not configured"}
	}
	switch n := s.events.ClientCount(); n {
	case 1:
		return ComponentHealth{Status: "healthy", Message: "1 connected client"}
	default:
		return ComponentHealth{Status: "healthy", Message: strconv.Itoa(n) + " connected clients"}
	}
}
