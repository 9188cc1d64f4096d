package redpanda

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
	"github.com/signalforge/opportunity-miner/internal/usecase"
)

// MineHandler decodes mine task records and runs the orchestrator.
type MineHandler struct {
	orchestrator *usecase.Orchestrator
	logger       *slog.Logger
}

// NewMineHandler constructs a MineHandler.
func NewMineHandler(orch *usecase.Orchestrator, logger *slog.Logger) *MineHandler {
	return &MineHandler{orchestrator: orch, logger: logger}
}

// HandleMine runs one mining job. Payloads that cannot be decoded are
// dropped (committed) since redelivery cannot fix them; orchestration errors
// are already reflected in the job row, so they commit too.
func (h *MineHandler) HandleMine(ctx context.Context, value []byte) error {
	var payload domain.MineTaskPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		h.logger.Error("dropping undecodable mine task", slog.Any("error", err))
		return nil
	}
	if payload.JobID == "" {
		h.logger.Error("dropping mine task without job id")
		return nil
	}

	lg := h.logger.With(slog.String("job_id", payload.JobID))
	if payload.RequestID != "" {
		lg = lg.With(slog.String("request_id", payload.RequestID))
		ctx = observability.ContextWithRequestID(ctx, payload.RequestID)
	}
	ctx = observability.ContextWithLogger(ctx, lg)

	lg.Info("mine task received", slog.String("platform", payload.Params.Platform))
	if err := h.orchestrator.Run(ctx, payload); err != nil {
		// Terminal failure is already written to the job row; surfacing the
		// error here would only cause a redelivery loop.
		lg.Error("mining job ended in failure", slog.Any("error", err))
	}
	return nil
}
