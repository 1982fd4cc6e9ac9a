package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
)

func newAggregateOf(errs ...error) error {
	r := newReport(OpSyncNetwork)
	for _, err := range errs {
		r.fail(err)
	}
	return r.Err()
}

func TestRecordReconcileMetric(t *testing.T) {
	// Reset metrics for testing
	reconcileTotal.Reset()
	reconcileDuration.Reset()

	recordReconcileMetric(OpSyncNic, nil, 0.2)

	counter, err := reconcileTotal.GetMetricWithLabelValues(OpSyncNic, "success")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))

	recordReconcileMetric(OpSyncNic, &contrail.APIError{Op: "create", Err: contrail.ErrUnavailable}, 0.1)

	transient, err := reconcileTotal.GetMetricWithLabelValues(OpSyncNic, "transient")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(transient))
}

func TestResultLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "success"},
		{name: "not found", err: &contrail.APIError{Err: contrail.ErrNotFound}, want: "not_found"},
		{name: "conflict", err: &contrail.APIError{Err: contrail.ErrConflict}, want: "transient"},
		{name: "invalid subnet", err: &model.InvalidSubnetError{Kind: contrail.KindVirtualNetwork}, want: "permanent"},
		{name: "aggregated validation", err: newAggregateOf(&model.ValidationError{Field: "cidr"}), want: "permanent"},
		{name: "other", err: errors.New("boom"), want: "error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resultLabel(tt.err))
		})
	}
}

func TestRecordFullSyncMetric(t *testing.T) {
	fullSyncObjects.Reset()
	before := testutil.ToFloat64(fullSyncOrphansDeleted)

	f := newFixture()
	report, err := f.full.Run(context.Background())
	require.NoError(t, err)
	report.Orphans = 2

	recordFullSyncMetric(report)

	gauge, err := fullSyncObjects.GetMetricWithLabelValues(string(contrail.KindVMInterface), "Active")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge))
	assert.Equal(t, before+2, testutil.ToFloat64(fullSyncOrphansDeleted))
}

func TestInstrumentAPI(t *testing.T) {
	apiCallsTotal.Reset()
	apiLatency.Reset()
	ctx := context.Background()

	api := InstrumentAPI(contrail.NewMemoryController())
	_, err := api.Get(ctx, contrail.KindVirtualNetwork, "missing")
	require.Error(t, err)
	require.NoError(t, api.Create(ctx, contrail.KindVirtualNetwork, &contrail.Object{
		UUID: "vn-1", Kind: contrail.KindVirtualNetwork, FQName: []string{"d", "p", "n"},
	}))

	notFound, err := apiCallsTotal.GetMetricWithLabelValues("get", string(contrail.KindVirtualNetwork), "not_found")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(notFound))

	created, err := apiCallsTotal.GetMetricWithLabelValues("create", string(contrail.KindVirtualNetwork), "success")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(created))
}
