package reconcile

import (
	"strings"

	"github.com/fatflowers/iftar/internal/models"
)

type MatchKind string

const (
	MatchNone          MatchKind = "none"
	MatchTransactionID MatchKind = "transaction_id"
	MatchAPIResponseID MatchKind = "api_response_id"
	// MatchFuzzy is a bidirectional substring match on the transaction id.
	MatchFuzzy MatchKind = "fuzzy"
)

// Match picks the payment a callback id refers to. Rules apply in order (exact transaction id,
// exact API response id, substring either way) and the first rule with candidates wins. Among
// candidates of one rule the most recently created payment is returned.
func Match(refs []models.PaymentRef, callbackID string) (*models.PaymentRef, MatchKind) {
	if callbackID == "" {
		return nil, MatchNone
	}
	rules := []struct {
		kind MatchKind
		ok   func(r *models.PaymentRef) bool
	}{
		{MatchTransactionID, func(r *models.PaymentRef) bool { return r.TransactionID == callbackID }},
		{MatchAPIResponseID, func(r *models.PaymentRef) bool {
			return r.APIResponseID != nil && *r.APIResponseID == callbackID
		}},
		{MatchFuzzy, func(r *models.PaymentRef) bool {
			return r.TransactionID != "" &&
				(strings.Contains(callbackID, r.TransactionID) || strings.Contains(r.TransactionID, callbackID))
		}},
	}
	for _, rule := range rules {
		var best *models.PaymentRef
		for i := range refs {
			r := &refs[i]
			if !rule.ok(r) {
				continue
			}
			if best == nil || r.CreatedAt.After(best.CreatedAt) {
				best = r
			}
		}
		if best != nil {
			return best, rule.kind
		}
	}
	return nil, MatchNone
}
