package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// SessionResponse is the audit view of a monitoring session
type SessionResponse struct {
	ID            string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	StartedAt     string  `json:"started_at" example:"2025-03-01T09:00:00Z"`
	EndedAt       *string `json:"ended_at,omitempty" example:"2025-03-01T10:30:00Z"`
	BaselineSetAt *string `json:"baseline_set_at,omitempty" example:"2025-03-01T09:00:01Z"`
	Ticks         int64   `json:"ticks" example:"5400"`
	Findings      int64   `json:"findings" example:"12"`
}

// FindingData is one finding raised by a tick
type FindingData struct {
	Kind   string `json:"kind" example:"looking_away"`
	At     string `json:"at" example:"2025-03-01T09:12:05Z"`
	Detail string `json:"detail" example:"User looking left"`
}

// StatusData is the operator-facing summary of a tick
type StatusData struct {
	Labels    []string `json:"labels" example:"Looking Left"`
	Text      string   `json:"text" example:"Looking Left"`
	Alert     bool     `json:"alert" example:"true"`
	FaceCount int      `json:"face_count" example:"1"`
}

// DetectorFailureData names a detector that gave no signal
type DetectorFailureData struct {
	Detector string `json:"detector" example:"objects"`
	Error    string `json:"error" example:"vision service unavailable"`
}

// TickResponse is the report of one evaluated tick
type TickResponse struct {
	SessionID     string                `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Seq           int64                 `json:"seq" example:"42"`
	At            string                `json:"at" example:"2025-03-01T09:00:42Z"`
	FaceCount     int                   `json:"face_count" example:"1"`
	Findings      []FindingData         `json:"findings"`
	Status        StatusData            `json:"status"`
	BaselineBound bool                  `json:"baseline_bound,omitempty" example:"false"`
	Failures      []DetectorFailureData `json:"failures,omitempty"`
	Degraded      bool                  `json:"degraded,omitempty" example:"false"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

var unauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized")

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Proctor Monitoring API",
		Version:     "v1.0.0",
		Description: "Exam proctoring: per-session frame evaluation, evidence capture and live status",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	sessionID := parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session ID (UUID)"))

	endpoints := []*endpoint.EndPoint{
		// POST /v1/sessions
		endpoint.New(
			endpoint.POST,
			"/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start a monitoring session"),
			endpoint.WithDescription("Starts a session now. JSON body with an optional session_id; a new id is generated when omitted. Sessions are also started implicitly by their first tick."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "201", "Session started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				unauthorized,
				response.New(ErrorResponse{Code: "SESSION_ALREADY_EXISTS", Message: "Monitoring session already exists"}, "409", "Conflict"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/sessions/{id}
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get a live session"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session found"),
			}),
			endpoint.WithErrors([]response.Response{
				unauthorized,
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Monitoring session not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/sessions/{id}/ticks
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/ticks",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Evaluate one frame"),
			endpoint.WithDescription("Multipart form: image (JPEG or PNG), sound (bool, optional; omitted means not sampled), timestamp (RFC3339, optional; defaults to now)."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(TickResponse{}, "200", "Tick evaluated"),
			}),
			endpoint.WithErrors([]response.Response{
				unauthorized,
				response.New(ErrorResponse{Code: "TICK_OUT_OF_ORDER", Message: "Tick timestamp is older than the previous tick"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests"}, "429", "Too Many Requests"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/sessions/{id}/frame
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}/frame",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Last annotated frame"),
			endpoint.WithDescription("JPEG of the last tick with status text and detection boxes drawn on it"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithParams(sessionID),
			endpoint.WithErrors([]response.Response{
				unauthorized,
				response.New(ErrorResponse{Code: "NO_FRAME_AVAILABLE", Message: "No frame has been processed for this session yet"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// DELETE /v1/sessions/{id}
		endpoint.New(
			endpoint.DELETE,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("End a session"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(sessionID),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session closed"),
			}),
			endpoint.WithErrors([]response.Response{
				unauthorized,
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Monitoring session not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/sessions/{id}/ws
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}/ws",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Live tick reports"),
			endpoint.WithDescription("WebSocket upgrade. Pushes tick.report for every tick and session.closed at the end."),
			endpoint.WithParams(sessionID),
			endpoint.WithErrors([]response.Response{
				unauthorized,
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
