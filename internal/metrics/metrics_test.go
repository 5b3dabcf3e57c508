package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

func TestRecorder_ObserveDecision(t *testing.T) {
	r := NewRecorder()

	r.ObserveDecision(decision.Decision{Strategy: models.StrategyChannelSelection, Outcome: models.PARTIAL_OFFLOAD, OffloadWeight: 0.7})
	r.ObserveDecision(decision.Decision{Strategy: models.StrategyChannelSelection, Outcome: models.PARTIAL_OFFLOAD, OffloadWeight: 0.9})
	r.ObserveDecision(decision.Decision{Strategy: models.StrategyHistory, Outcome: models.UNCHANGED})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("mec", "partial_offload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("dynamic", "unchanged")))

	// unchanged decisions do not observe a weight
	assert.Equal(t, 1, testutil.CollectAndCount(r.offloadWeight))
}

func TestRecorder_ObserveChannelsAndHistory(t *testing.T) {
	r := NewRecorder()

	r.ObserveChannels(map[int]int{1: 4, 2: 0})
	r.ObserveHistory(history.Stats{Size: 5, Unset: 1, Local: 3, Offload: 1})

	assert.Equal(t, 4.0, testutil.ToFloat64(r.channelConnections.WithLabelValues("1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.channelConnections.WithLabelValues("2")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.historySize.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.historySize.WithLabelValues("unset")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveDecision(decision.Decision{Strategy: models.StrategyHistory, Outcome: models.FORCED_LOCAL})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mec_decisions_total")
	assert.Contains(t, string(body), `outcome="forced_local"`)
}
