package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/internal/app/service/payment"
	"github.com/fatflowers/iftar/pkg/response"
)

// @Summary      Start an online payment
// @Description  Creates a pending payment and returns the gateway checkout URL.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.InitiateRequest true "Payment"
// @Success      200  {object}  handlers.RespInitiatePayment
// @Router       /api/v1/payments [post]
func ApiInitiatePayment(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.InitiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Initiate(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Payment status
// @Description  Latest gateway and manual payment of a participant. Polled by the return page.
// @Tags         Payment
// @Produce      json
// @Param        participant_id path string true "Participant id"
// @Success      200  {object}  handlers.RespPaymentStatus
// @Router       /api/v1/payments/status/{participant_id} [get]
func ApiPaymentStatus(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Status(c.Request.Context(), c.Param("participant_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service) {
	r.POST("/payments", ApiInitiatePayment(svc))
	r.GET("/payments/status/:participant_id", ApiPaymentStatus(svc))
}
