package notification

import (
	"context"
	"fmt"

	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/notify"
	"github.com/fatflowers/iftar/pkg/types"
)

func (d *Dispatcher) participantParams(p *models.Participant) map[string]any {
	params := map[string]any{
		"event":      d.eventName,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"short_code": p.ShortCode,
	}
	if p.QRCode != nil {
		params["qr_code"] = *p.QRCode
	}
	return params
}

// Registered confirms the registration and hands out the short code.
func (d *Dispatcher) Registered(ctx context.Context, p *models.Participant) {
	d.Notify(ctx, Job{
		Channel:       types.NotificationChannelEmail,
		ParticipantID: p.ID,
		Message:       notify.Message{To: p.Email, TemplateID: d.templates.Registration, Params: d.participantParams(p)},
	})
}

// PaymentConfirmed sends the access credential by email and the short code by SMS.
func (d *Dispatcher) PaymentConfirmed(ctx context.Context, p *models.Participant) {
	params := d.participantParams(p)
	d.Notify(ctx, Job{
		Channel:       types.NotificationChannelEmail,
		ParticipantID: p.ID,
		Message:       notify.Message{To: p.Email, TemplateID: d.templates.PaymentConfirmed, Params: params},
	})
	d.Notify(ctx, Job{
		Channel:       types.NotificationChannelSMS,
		ParticipantID: p.ID,
		Message:       notify.Message{To: p.Phone, TemplateID: d.templates.SMSConfirmed, Params: params},
	})
}

func (d *Dispatcher) ManualPaymentSubmitted(ctx context.Context, p *models.Participant, mp *models.ManualPayment) {
	params := d.participantParams(p)
	params["amount"] = mp.Amount
	params["method"] = string(mp.Method)
	params["phone_number"] = mp.PhoneNumber
	params["proof_url"] = mp.ProofURL
	params["comment"] = mp.Comment
	params["manual_payment_id"] = mp.ID
	d.Notify(ctx, Job{
		Channel:       types.NotificationChannelEmail,
		ParticipantID: p.ID,
		Message:       notify.Message{To: d.adminEmail, TemplateID: d.templates.ManualPaymentAdmin, Params: params},
	})
}

func (d *Dispatcher) ManualPaymentRejected(ctx context.Context, p *models.Participant, adminComment string) {
	params := d.participantParams(p)
	params["admin_comment"] = adminComment
	d.Notify(ctx, Job{
		Channel:       types.NotificationChannelEmail,
		ParticipantID: p.ID,
		Message:       notify.Message{To: p.Email, TemplateID: d.templates.ManualPaymentReject, Params: params},
	})
}

// AdminSummary renders the one-line text used for chat alerts.
func AdminSummary(p *models.Participant, mp *models.ManualPayment) string {
	return fmt.Sprintf("New manual payment\n%s (%s)\n%d via %s from %s\n%s",
		p.FullName(), p.Phone, mp.Amount, mp.Method, mp.PhoneNumber, mp.ProofURL)
}
