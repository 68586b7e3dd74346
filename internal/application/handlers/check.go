package handlers

import (
	"context"

	"github.com/ersonp/kin-core/internal/domain/services"
)

// CheckHandler runs the consistency scan.
type CheckHandler struct {
	service *services.CheckService
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(service *services.CheckService) *CheckHandler {
	return &CheckHandler{service: service}
}

// Handle scans the register and returns the report.
func (h *CheckHandler) Handle(ctx context.Context) (*services.CheckReport, error) {
	return h.service.Check(ctx)
}
