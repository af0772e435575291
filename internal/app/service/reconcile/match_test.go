package reconcile

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/types"
)

func TestMatch(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	refs := []models.PaymentRef{
		{ID: "a", TransactionID: "IFT0001", CreatedAt: t0},
		{ID: "b", TransactionID: "IFT0002", APIResponseID: lo.ToPtr("API-77"), CreatedAt: t0.Add(time.Minute)},
		{ID: "c", TransactionID: "IFT000", CreatedAt: t0.Add(2 * time.Minute)},
		{ID: "d", TransactionID: "API-77", CreatedAt: t0.Add(-time.Hour)},
	}
	cases := []struct {
		name   string
		id     string
		wantID string
		kind   MatchKind
	}{
		{"exact transaction id", "IFT0001", "a", MatchTransactionID},
		{"exact transaction id wins over api id", "API-77", "d", MatchTransactionID},
		{"callback id contains stored id, newest wins", "IFT0002-X", "c", MatchFuzzy},
		{"stored id contains callback id, newest wins", "T000", "c", MatchFuzzy},
		{"no match", "ZZZ", "", MatchNone},
		{"empty id", "", "", MatchNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, kind := Match(refs, tc.id)
			require.Equal(t, tc.kind, kind)
			if tc.wantID == "" {
				require.Nil(t, got)
				return
			}
			require.Equal(t, tc.wantID, got.ID)
		})
	}
}

func TestMatch_APIResponseID(t *testing.T) {
	refs := []models.PaymentRef{
		{ID: "a", TransactionID: "IFT0001", APIResponseID: lo.ToPtr("1695040420.99")},
	}
	got, kind := Match(refs, "1695040420.99")
	require.Equal(t, MatchAPIResponseID, kind)
	require.Equal(t, "a", got.ID)
}

func TestMatch_ExactTieBreakNewest(t *testing.T) {
	t0 := time.Now()
	refs := []models.PaymentRef{
		{ID: "old", APIResponseID: lo.ToPtr("R1"), TransactionID: "X1", CreatedAt: t0},
		{ID: "new", APIResponseID: lo.ToPtr("R1"), TransactionID: "X2", CreatedAt: t0.Add(time.Second)},
	}
	got, _ := Match(refs, "R1")
	require.Equal(t, "new", got.ID)
}

func TestMapGatewayStatus(t *testing.T) {
	require.Equal(t, types.PaymentStatusCompleted, MapGatewayStatus("ACCEPTED"))
	require.Equal(t, types.PaymentStatusCompleted, MapGatewayStatus(" accepted "))
	require.Equal(t, types.PaymentStatusFailed, MapGatewayStatus("REFUSED"))
	require.Equal(t, types.PaymentStatusPending, MapGatewayStatus("WAITING_FOR_CUSTOMER"))
	require.Equal(t, types.PaymentStatusPending, MapGatewayStatus(""))
}
