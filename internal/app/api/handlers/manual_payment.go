package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/internal/app/service/manualpayment"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/response"
	"github.com/fatflowers/iftar/pkg/types"
)

// maxManualPaymentBody bounds the whole multipart request: the proof plus room for the form fields.
const maxManualPaymentBody = manualpayment.MaxProofSize + 1<<20

// @Summary      Submit a manual payment
// @Description  Mobile money transfer declared by the participant with a proof file (PNG, JPEG or PDF, 5 MB max).
// @Tags         Payment
// @Accept       multipart/form-data
// @Produce      json
// @Param        participant_id formData string true  "Participant id"
// @Param        method         formData string false "Payment method" default(mobile_money)
// @Param        phone_number   formData string true  "Phone number used for the transfer"
// @Param        comment        formData string false "Comment"
// @Param        file           formData file   true  "Payment proof"
// @Success      200  {object}  handlers.RespManualPayment
// @Router       /api/v1/manual-payments [post]
func ApiSubmitManualPayment(svc *manualpayment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxManualPaymentBody {
			writeError(c, manualpayment.ErrFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxManualPaymentBody)
		if err := c.Request.ParseMultipartForm(maxManualPaymentBody); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(c, manualpayment.ErrFileTooLarge)
				return
			}
			badRequest(c, err.Error())
			return
		}

		req := manualpayment.SubmitRequest{
			ParticipantID: c.PostForm("participant_id"),
			Method:        types.PaymentMethod(c.PostForm("method")),
			PhoneNumber:   c.PostForm("phone_number"),
			Comment:       c.PostForm("comment"),
		}
		fh, err := c.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			badRequest(c, err.Error())
			return
		default:
			f, err := fh.Open()
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			defer f.Close()
			req.File = &manualpayment.File{Name: fh.Filename, Size: fh.Size, Body: f}
		}

		mp, err := svc.Submit(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(mp))
	}
}

// @Summary      Validate a manual payment (Admin)
// @Description  Moves a pending manual payment to completed or rejected.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Manual payment id"
// @Param        request body manualpayment.ValidateRequest true "Decision"
// @Success      200  {object}  handlers.RespManualPayment
// @Router       /api/v1/admin/manual-payments/{id}/validate [post]
func ApiValidateManualPayment(svc *manualpayment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req manualpayment.ValidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		mp, err := svc.Validate(c.Request.Context(), c.Param("id"), req, c.GetString(logctx.AdminKey))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(mp))
	}
}

// @Summary      List manual payments (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "pending, completed or rejected"
// @Success      200  {object}  handlers.RespManualPayments
// @Router       /api/v1/admin/manual-payments [get]
func ApiListManualPayments(svc *manualpayment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.List(c.Request.Context(), types.PaymentStatus(c.Query("status")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterManualPaymentRoutes(r gin.IRouter, svc *manualpayment.Service) {
	r.POST("/manual-payments", ApiSubmitManualPayment(svc))
}
