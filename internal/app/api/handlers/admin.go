package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/checkin"
	"github.com/fatflowers/iftar/internal/app/service/export"
	"github.com/fatflowers/iftar/internal/app/service/manualpayment"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/app/service/statistics"
	"github.com/fatflowers/iftar/pkg/response"
	"github.com/fatflowers/iftar/pkg/types"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type MembershipRequest struct {
	IsMember *bool `json:"is_member" binding:"required"`
}

type PaymentStatusRequest struct {
	Status types.PaymentStatus `json:"status" binding:"required"`
}

type ExportResult struct {
	Rows int `json:"rows"`
}

// @Summary      Admin login
// @Description  Exchanges the admin credentials for a bearer token.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.LoginRequest true "Credentials"
// @Success      200  {object}  handlers.RespToken
// @Router       /api/v1/admin/login [post]
func ApiAdminLogin(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tok, err := svc.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(tok))
	}
}

// @Summary      List participants (Admin)
// @Description  Paginated, filterable and sortable participant listing.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body participant.ListRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespParticipantList
// @Router       /api/v1/admin/participants/list [post]
func ApiListParticipants(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req participant.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.List(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Set membership (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Participant id"
// @Param        request body handlers.MembershipRequest true "Membership"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/participants/{id}/membership [patch]
func ApiSetMembership(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MembershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svc.SetMembership(c.Request.Context(), c.Param("id"), *req.IsMember); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Override a gateway payment status (Admin)
// @Description  Only pending payments move; completing one issues the QR code and notifications.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment id"
// @Param        request body handlers.PaymentStatusRequest true "Target status"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/payments/{id}/status [post]
func ApiSetPaymentStatus(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Dashboard summary (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespStats
// @Router       /api/v1/admin/stats [get]
func ApiStats(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Summary(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Time series (Admin)
// @Description  Daily registrations, revenue and check-ins.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.Request true "Data items and filters"
// @Success      200  {object}  handlers.RespSeries
// @Router       /api/v1/admin/stats/series [post]
func ApiStatsSeries(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Series(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Export participants as CSV (Admin)
// @Tags         Admin
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /api/v1/admin/export.csv [get]
func ApiExportCSV(svc *export.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.Rows(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		name := fmt.Sprintf("participants-%s.csv", time.Now().Format("20060102-1504"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		if _, err := export.EncodeCSV(c.Writer, rows); err != nil {
			_ = c.Error(err)
		}
	}
}

// @Summary      Push participants to Google Sheets (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespExport
// @Router       /api/v1/admin/export/sheets [post]
func ApiExportSheets(svc *export.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.PushSheets(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(ExportResult{Rows: n}))
	}
}

// @Summary      Delete every participant (Admin)
// @Description  Removes participants, guests, payments, manual payments and check-ins. Requires confirm=yes.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        confirm query string true "Must be yes"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/participants [delete]
func ApiWipe(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("confirm") != "yes" {
			badRequest(c, "confirm=yes is required")
			return
		}
		if err := svc.Wipe(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminLoginRoutes(r gin.IRouter, svc *auth.Service) {
	r.POST("/login", ApiAdminLogin(svc))
}

func RegisterAdminRoutes(
	r gin.IRouter,
	participants *participant.Service,
	rec *reconcile.Service,
	manual *manualpayment.Service,
	checkins *checkin.Service,
	stats *statistics.Service,
	exp *export.Service,
) {
	r.POST("/participants/list", ApiListParticipants(participants))
	r.PATCH("/participants/:id/membership", ApiSetMembership(participants))
	r.DELETE("/participants", ApiWipe(participants))
	r.POST("/payments/:id/status", ApiSetPaymentStatus(rec))
	r.GET("/manual-payments", ApiListManualPayments(manual))
	r.POST("/manual-payments/:id/validate", ApiValidateManualPayment(manual))
	r.POST("/checkin/qr", ApiCheckInByQR(checkins))
	r.POST("/checkin/code", ApiCheckInByCode(checkins))
	r.POST("/guests/:id/checkin", ApiCheckInGuest(checkins))
	r.GET("/checkins", ApiListCheckIns(checkins))
	r.GET("/stats", ApiStats(stats))
	r.POST("/stats/series", ApiStatsSeries(stats))
	r.GET("/export.csv", ApiExportCSV(exp))
	r.POST("/export/sheets", ApiExportSheets(exp))
}
