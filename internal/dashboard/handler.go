package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/planfit/planfit/internal/auth"
	"github.com/planfit/planfit/internal/telemetry/tracing"
	"github.com/planfit/planfit/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.get")
	defer span.End()

	userID := auth.UserIDFromContext(ctx)
	d := handler.aggregator.Build(ctx, userID)

	dashboardJson, err := json.Marshal(d)
	if err != nil {
		log.Errorf("failed to marshal dashboard: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, dashboardJson, http.StatusOK)
}
