package handlers

import (
	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/payment"
	"github.com/fatflowers/iftar/internal/app/service/statistics"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespParticipant struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Participant       `json:"data"`
}

type RespParticipantList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    participant.ListResponse `json:"data"`
}

type RespInitiatePayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.InitiateResponse `json:"data"`
}

type RespPaymentStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.StatusResponse   `json:"data"`
}

type RespManualPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.ManualPayment     `json:"data"`
}

type RespManualPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.ManualPayment   `json:"data"`
}

type RespLookup struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    LookupView               `json:"data"`
}

type RespToken struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    auth.Token               `json:"data"`
}

type RespStats struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    repository.Stats         `json:"data"`
}

type RespSeries struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

type RespExport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ExportResult             `json:"data"`
}
