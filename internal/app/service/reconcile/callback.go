package reconcile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fatflowers/iftar/pkg/types"
)

// Gateway status values carried by callbacks.
const (
	GatewayStatusAccepted = "ACCEPTED"
	GatewayStatusRefused  = "REFUSED"
)

// Callback is the asynchronous notification posted by the gateway.
type Callback struct {
	TransactionID string `json:"cpm_trans_id"`
	SiteID        string `json:"cpm_site_id"`
	Status        string `json:"status"`
	OperatorID    string `json:"operator_id"`

	// Raw is the request body, kept for the callback log.
	Raw []byte `json:"-"`
}

func (c *Callback) normalize() {
	c.TransactionID = strings.TrimSpace(c.TransactionID)
	c.SiteID = strings.TrimSpace(c.SiteID)
	c.Status = strings.TrimSpace(c.Status)
	c.OperatorID = strings.TrimSpace(c.OperatorID)
}

// MapGatewayStatus maps ACCEPTED to completed, REFUSED to failed and anything else to pending.
func MapGatewayStatus(status string) types.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case GatewayStatusAccepted:
		return types.PaymentStatusCompleted
	case GatewayStatusRefused:
		return types.PaymentStatusFailed
	default:
		return types.PaymentStatusPending
	}
}

// StatusMessage is the user facing message for a payment status.
func StatusMessage(s types.PaymentStatus) string {
	switch s {
	case types.PaymentStatusCompleted:
		return "payment confirmed"
	case types.PaymentStatusFailed:
		return "payment refused"
	case types.PaymentStatusRejected:
		return "payment rejected"
	default:
		return "payment pending"
	}
}

// ParseCallback decodes a callback body. Form encoded bodies are detected from the content type;
// anything else is read as JSON, then as a query string when JSON decoding fails.
func ParseCallback(contentType string, body []byte) (Callback, error) {
	var cb Callback
	if !strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		if err := json.Unmarshal(body, &cb); err == nil {
			cb.Raw = body
			cb.normalize()
			return cb, nil
		}
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return cb, fmt.Errorf("%w: malformed callback body", types.ErrInvalidInput)
	}
	cb = Callback{
		TransactionID: values.Get("cpm_trans_id"),
		SiteID:        values.Get("cpm_site_id"),
		Status:        values.Get("status"),
		OperatorID:    values.Get("operator_id"),
		Raw:           body,
	}
	cb.normalize()
	return cb, nil
}
