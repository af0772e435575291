package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/iftar/internal/app/api/middleware"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/types"
)

const maxCallbackBody = 64 << 10

// WebhookResponse is the gateway-facing body. Unlike the rest of the API the webhook answers with
// real HTTP status codes.
type WebhookResponse struct {
	Success       bool                `json:"success"`
	TransactionID string              `json:"transaction_id,omitempty"`
	PaymentID     string              `json:"payment_id,omitempty"`
	NewStatus     types.PaymentStatus `json:"new_status,omitempty"`
	Message       string              `json:"message,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func webhookStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// @Summary      Payment gateway webhook
// @Description  Asynchronous payment notification. Accepts JSON or form bodies with cpm_trans_id, cpm_site_id, status and operator_id.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body reconcile.Callback true "Gateway callback"
// @Success      200  {object}  handlers.WebhookResponse
// @Failure      400  {object}  handlers.WebhookResponse
// @Failure      404  {object}  handlers.WebhookResponse
// @Failure      500  {object}  handlers.WebhookResponse
// @Router       /api/v1/payments/webhook [post]
func ApiPaymentWebhook(svc *reconcile.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, base)
		mw.SetCORSHeaders(c, "*")

		defer func() {
			if r := recover(); r != nil {
				lg.Errorw("webhook_panic", "panic", r, zap.StackSkip("stack", 1))
				c.AbortWithStatusJSON(http.StatusInternalServerError, WebhookResponse{Error: internalErrorMessage})
			}
		}()

		switch c.Request.Method {
		case http.MethodOptions:
			c.AbortWithStatus(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			c.Header("Allow", "POST, OPTIONS")
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, WebhookResponse{Error: "method not allowed"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, WebhookResponse{Error: "cannot read body"})
			return
		}
		cb, err := reconcile.ParseCallback(c.ContentType(), body)
		if err != nil {
			c.JSON(http.StatusBadRequest, WebhookResponse{Error: err.Error()})
			return
		}
		lg.Infow("webhook_received", "transaction_id", cb.TransactionID, "status", cb.Status)

		res, err := svc.Reconcile(c.Request.Context(), cb)
		if err != nil {
			status := webhookStatus(err)
			if status == http.StatusInternalServerError {
				lg.Errorw("webhook_failed", "transaction_id", cb.TransactionID, "err", err)
				_ = c.Error(err)
				c.JSON(status, WebhookResponse{TransactionID: cb.TransactionID, Error: internalErrorMessage})
				return
			}
			lg.Warnw("webhook_rejected", "transaction_id", cb.TransactionID, "http_status", status, "err", err)
			c.JSON(status, WebhookResponse{TransactionID: cb.TransactionID, Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, WebhookResponse{
			Success:       true,
			TransactionID: cb.TransactionID,
			PaymentID:     res.PaymentID,
			NewStatus:     res.Status,
			Message:       reconcile.StatusMessage(res.Status),
		})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *reconcile.Service, base *zap.SugaredLogger) {
	r.Any("/payments/webhook", ApiPaymentWebhook(svc, base))
}

