package api

import (
	"net/http"
	"time"

	"github.com/snarg/autosubs/internal/media"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Recognizer    RecognizerStatus  `json:"recognizer"`
	InFlight      int64             `json:"in_flight"`
	Checks        map[string]string `json:"checks"`
}

type RecognizerStatus struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// RecognizerInfo identifies the configured speech recognizer.
type RecognizerInfo interface {
	Name() string
	Model() string
}

// ConnState reports whether an optional broker connection is up.
type ConnState interface {
	IsConnected() bool
}

type HealthHandler struct {
	recognizer RecognizerInfo
	mqtt       ConnState
	jobs       interface{ InFlight() int64 }
	binaries   []string
	checkBin   func(string) error
	version    string
	startTime  time.Time
}

// NewHealthHandler creates the health endpoint. mqtt may be nil when events
// are not configured; binaries are the external tools acquisition shells out to.
func NewHealthHandler(recognizer RecognizerInfo, mqtt ConnState, jobs interface{ InFlight() int64 }, binaries []string, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		recognizer: recognizer,
		mqtt:       mqtt,
		jobs:       jobs,
		binaries:   binaries,
		checkBin:   media.CheckBinary,
		version:    version,
		startTime:  startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// External tools
	for _, bin := range h.binaries {
		if err := h.checkBin(bin); err != nil {
			checks[bin] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks[bin] = "ok"
		}
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.recognizer != nil {
		resp.Recognizer = RecognizerStatus{Name: h.recognizer.Name(), Model: h.recognizer.Model()}
	}
	if h.jobs != nil {
		resp.InFlight = h.jobs.InFlight()
	}

	WriteJSON(w, httpStatus, resp)
}
