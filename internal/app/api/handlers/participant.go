package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/pkg/response"
)

// @Summary      Register a participant
// @Description  Creates a participant with its companions and a unique short code.
// @Tags         Participant
// @Accept       json
// @Produce      json
// @Param        request body participant.RegisterRequest true "Registration"
// @Success      200  {object}  handlers.RespParticipant
// @Router       /api/v1/participants [post]
func ApiRegister(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req participant.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.Register(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Get a participant
// @Tags         Participant
// @Produce      json
// @Param        id path string true "Participant id"
// @Success      200  {object}  handlers.RespParticipant
// @Router       /api/v1/participants/{id} [get]
func ApiGetParticipant(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Add a companion
// @Tags         Participant
// @Accept       json
// @Produce      json
// @Param        id path string true "Participant id"
// @Param        request body participant.GuestInput true "Guest"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/participants/{id}/guests [post]
func ApiAddGuest(svc *participant.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req participant.GuestInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		g, err := svc.AddGuest(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(g))
	}
}

func RegisterParticipantRoutes(r gin.IRouter, svc *participant.Service) {
	r.POST("/participants", ApiRegister(svc))
	r.GET("/participants/:id", ApiGetParticipant(svc))
	r.POST("/participants/:id/guests", ApiAddGuest(svc))
}
