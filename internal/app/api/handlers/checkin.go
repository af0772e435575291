package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/internal/app/service/checkin"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/response"
	"github.com/fatflowers/iftar/pkg/types"
)

// LookupView is what the public code lookup exposes. Contact details stay out.
type LookupView struct {
	ParticipantID string              `json:"participant_id"`
	FirstName     string              `json:"first_name"`
	LastName      string              `json:"last_name"`
	ShortCode     string              `json:"short_code"`
	IsMember      bool                `json:"is_member"`
	Paid          bool                `json:"paid"`
	PaymentStatus types.PaymentStatus `json:"payment_status"`
	CheckedIn     bool                `json:"checked_in"`
	Guests        []*models.Guest     `json:"guests"`
}

func toLookupView(p *models.Participant) *LookupView {
	v := &LookupView{
		ParticipantID: p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		ShortCode:     p.ShortCode,
		IsMember:      p.IsMember,
		Paid:          participant.HasCompletedPayment(p),
		CheckedIn:     p.CheckedIn,
		Guests:        p.Guests,
	}
	switch {
	case v.Paid:
		v.PaymentStatus = types.PaymentStatusCompleted
	case len(p.ManualPayments) > 0:
		v.PaymentStatus = p.ManualPayments[0].Status
	case len(p.Payments) > 0:
		v.PaymentStatus = p.Payments[0].Status
	}
	return v
}

type selfCheckInRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

type qrCheckInRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
}

type codeCheckInRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary      Look up a registration by short code
// @Description  Case-insensitive lookup used by the ticket page and the door.
// @Tags         CheckIn
// @Produce      json
// @Param        code path string true "Short code, e.g. SIG-1234"
// @Success      200  {object}  handlers.RespLookup
// @Router       /api/v1/checkin/code/{code} [get]
func ApiLookupByCode(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.LookupByShortCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(toLookupView(p)))
	}
}

// @Summary      Self check-in
// @Tags         CheckIn
// @Accept       json
// @Produce      json
// @Param        request body handlers.selfCheckInRequest true "Participant"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/checkin/self [post]
func ApiSelfCheckIn(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selfCheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Self(c.Request.Context(), req.ParticipantID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(toLookupView(res.Participant)))
	}
}

// @Summary      Check in by QR code (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.qrCheckInRequest true "QR code"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/checkin/qr [post]
func ApiCheckInByQR(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req qrCheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.ByQRCode(c.Request.Context(), req.QRCode, c.GetString(logctx.AdminKey))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Check in by short code (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.codeCheckInRequest true "Short code"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/checkin/code [post]
func ApiCheckInByCode(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codeCheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.ByShortCode(c.Request.Context(), req.Code, c.GetString(logctx.AdminKey))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Check in a companion (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Guest id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/guests/{id}/checkin [post]
func ApiCheckInGuest(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Guest(c.Request.Context(), c.Param("id"), c.GetString(logctx.AdminKey))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Recent check-ins (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max entries" default(100)
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/checkins [get]
func ApiListCheckIns(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				badRequest(c, "invalid limit")
				return
			}
			limit = n
		}
		items, err := svc.List(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterCheckInRoutes(r gin.IRouter, participants *participant.Service, svc *checkin.Service) {
	r.GET("/checkin/code/:code", ApiLookupByCode(participants))
	r.POST("/checkin/self", ApiSelfCheckIn(svc))
}
