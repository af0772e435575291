package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBusiness_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBusiness(reg)

	b.Reconcile("completed")
	b.Reconcile("completed")
	b.Reconcile("not_found")
	b.CheckIn("qr_scan")

	require.Equal(t, float64(2), testutil.ToFloat64(b.reconcile.WithLabelValues("completed")))
	require.Equal(t, float64(1), testutil.ToFloat64(b.reconcile.WithLabelValues("not_found")))
	require.Equal(t, float64(1), testutil.ToFloat64(b.checkIn.WithLabelValues("qr_scan")))
}

func TestBusiness_NilIsNoop(t *testing.T) {
	var b *Business
	require.NotPanics(t, func() {
		b.Reconcile("x")
		b.ManualPayment("x")
		b.CheckIn("x")
		b.Notification("email", "sent")
	})
}
