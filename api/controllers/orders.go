package controllers

import (
	"net/http"
	"strings"

	"github.com/orderdesk/orderdesk-backend/api/responses"
	"github.com/orderdesk/orderdesk-backend/api/validators"
	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
)

type ingestRequest struct {
	Trigger string                `json:"trigger" validate:"omitempty,oneof=webhook sync manual"`
	Orders  []ingest.OrderPayload `json:"orders" validate:"required,min=1"`
}

// IngestOrders stores and assigns a batch of storefront orders. Per-order
// problems are reported in the body; only batch-level failures change the
// status code.
func IngestOrders(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		trigger := strings.TrimSpace(req.Trigger)
		if trigger == "" {
			trigger = ingest.TriggerWebhook
		}

		res, err := svc.IngestBatch(r.Context(), trigger, req.Orders)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// AssignOrder assigns a stored order that has no owner yet.
func AssignOrder(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.AssignOrder(r.Context(), ingest.TriggerManual, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
