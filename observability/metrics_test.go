package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"fortunex/core/types"
	"fortunex/native/lottery"
)

type wrappedEvent struct{ evt *types.Event }

func (w wrappedEvent) EventType() string    { return w.evt.Type }
func (w wrappedEvent) Event() *types.Event { return w.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestObserveOperationLabelsErrorClass(t *testing.T) {
	m := Lottery()
	before := testutil.ToFloat64(m.operations.WithLabelValues("buy_tickets", "state_conflict"))
	m.ObserveOperation("buy_tickets", time.Millisecond, lottery.ErrPoolFull)
	m.ObserveOperation("buy_tickets", 0, errors.New("x"))
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("buy_tickets", "state_conflict")))
}

func TestEventMetricsRecordsDisbursements(t *testing.T) {
	m := Lottery()
	winnerBefore := testutil.ToFloat64(m.disbursed.WithLabelValues("winner"))
	settledBefore := testutil.ToFloat64(m.events.WithLabelValues(lottery.EventTypePoolSettled))

	emitter := EventMetrics{Metrics: m}
	emitter.Emit(wrappedEvent{evt: &types.Event{Type: lottery.EventTypePoolSettled, Attributes: map[string]string{
		"winnerPrize": "98000000",
		"platformFee": "1000000",
		"bonusFee":    "1000000",
		"commission":  "0",
	}}})
	emitter.Emit(bareEvent{})

	require.Equal(t, winnerBefore+98_000_000, testutil.ToFloat64(m.disbursed.WithLabelValues("winner")))
	require.Equal(t, settledBefore+1, testutil.ToFloat64(m.events.WithLabelValues(lottery.EventTypePoolSettled)))

	_, err := Payload(bareEvent{})
	require.Error(t, err)
}
