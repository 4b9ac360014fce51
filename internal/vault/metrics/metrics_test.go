package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDecision("safe", "deny", "contract_not_allowed")
	m.RecordDecision("safe", "deny", "contract_not_allowed")
	m.RecordDecision("degenerate", "allow", "")
	m.IncrementAdvisoryWarnings()
	m.RecordAdminMutation("add_allowed_contract", "ok")
	m.RecordModeChange("balanced")
	m.IncrementStoreConflicts()
	m.ObserveEvaluation(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("safe", "deny", "contract_not_allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("degenerate", "allow", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryWarnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdminMutations.WithLabelValues("add_allowed_contract", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeChanges.WithLabelValues("balanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConflicts))

	count, err := testutil.GatherAndCount(reg, "shieldvault_evaluation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
