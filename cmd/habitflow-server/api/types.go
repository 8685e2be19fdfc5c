// Package api provides HTTP API handlers for the habitflow server.
package api

import (
	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// TimerListResponse is the response for GET /api/v1/timers.
type TimerListResponse struct {
	Timers []store.Definition `json:"timers"`
	Total  int                `json:"total"`
}

// ActiveListResponse is the response for GET /api/v1/timers/active.
type ActiveListResponse struct {
	Timers []timer.Info `json:"timers"`
	Total  int          `json:"total"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
