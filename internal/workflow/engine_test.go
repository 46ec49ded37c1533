package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffenseLifecycle(t *testing.T) {
	engine := NewEngine(Tables())

	steps := []struct {
		from  State
		event Event
		want  State
	}{
		{OffenseUnprocessed, EventStartProcessing, OffenseProcessing},
		{OffenseProcessing, EventCompleteProcessing, OffenseProcessed},
		{OffenseProcessed, EventSubmitAppeal, OffenseAppealing},
		{OffenseAppealing, EventApproveAppeal, OffenseAppealApproved},
		{OffenseAppealing, EventRejectAppeal, OffenseAppealRejected},
		{OffenseAppealing, EventWithdrawAppeal, OffenseProcessed},
	}
	for _, s := range steps {
		assert.Equal(t, s.want, engine.Apply(KindOffense, s.from, s.event),
			"%s --%s--> %s", s.from, s.event, s.want)
	}

	t.Run("cancel reachable from every non-terminal state", func(t *testing.T) {
		for _, from := range []State{
			OffenseUnprocessed, OffenseProcessing, OffenseProcessed,
			OffenseAppealing, OffenseAppealApproved, OffenseAppealRejected,
		} {
			assert.Equal(t, OffenseCancelled, engine.Apply(KindOffense, from, EventCancel))
		}
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		for _, event := range []Event{
			EventStartProcessing, EventCompleteProcessing, EventSubmitAppeal,
			EventApproveAppeal, EventRejectAppeal, EventWithdrawAppeal, EventCancel,
		} {
			assert.Equal(t, OffenseCancelled, engine.Apply(KindOffense, OffenseCancelled, event))
		}
	})

	t.Run("skipping a stage is rejected", func(t *testing.T) {
		assert.Equal(t, OffenseUnprocessed,
			engine.Apply(KindOffense, OffenseUnprocessed, EventCompleteProcessing))
		assert.Equal(t, OffenseProcessing,
			engine.Apply(KindOffense, OffenseProcessing, EventSubmitAppeal))
	})
}

func TestPaymentLifecycle(t *testing.T) {
	engine := NewEngine(Tables())

	steps := []struct {
		from  State
		event Event
		want  State
	}{
		{PaymentUnpaid, EventPartialPay, PaymentPartial},
		{PaymentUnpaid, EventCompletePayment, PaymentPaid},
		{PaymentUnpaid, EventMarkOverdue, PaymentOverdue},
		{PaymentUnpaid, EventWaiveFine, PaymentWaived},
		{PaymentPartial, EventContinuePayment, PaymentPaid},
		{PaymentPartial, EventMarkOverdue, PaymentOverdue},
		{PaymentPartial, EventWaiveFine, PaymentWaived},
		{PaymentOverdue, EventCompletePayment, PaymentPaid},
		{PaymentOverdue, EventWaiveFine, PaymentWaived},
		{PaymentPaid, EventWaiveFine, PaymentWaived},
	}
	for _, s := range steps {
		assert.Equal(t, s.want, engine.Apply(KindPayment, s.from, s.event),
			"%s --%s--> %s", s.from, s.event, s.want)
	}

	t.Run("waived is terminal", func(t *testing.T) {
		for _, event := range []Event{
			EventPartialPay, EventContinuePayment, EventCompletePayment,
			EventMarkOverdue, EventWaiveFine,
		} {
			assert.Equal(t, PaymentWaived, engine.Apply(KindPayment, PaymentWaived, event))
		}
	})

	t.Run("paid cannot become partial again", func(t *testing.T) {
		assert.Equal(t, PaymentPaid, engine.Apply(KindPayment, PaymentPaid, EventPartialPay))
	})
}

func TestAppealLifecycle(t *testing.T) {
	engine := NewEngine(Tables())

	steps := []struct {
		from  State
		event Event
		want  State
	}{
		{AppealUnprocessed, EventStartReview, AppealUnderReview},
		{AppealUnprocessed, EventWithdraw, AppealWithdrawn},
		{AppealUnderReview, EventApprove, AppealApproved},
		{AppealUnderReview, EventReject, AppealRejected},
		{AppealUnderReview, EventWithdraw, AppealWithdrawn},
		{AppealRejected, EventReopenReview, AppealUnderReview},
	}
	for _, s := range steps {
		assert.Equal(t, s.want, engine.Apply(KindAppeal, s.from, s.event),
			"%s --%s--> %s", s.from, s.event, s.want)
	}

	t.Run("approved and withdrawn are terminal", func(t *testing.T) {
		for _, terminal := range []State{AppealApproved, AppealWithdrawn} {
			for _, event := range []Event{
				EventStartReview, EventApprove, EventReject, EventWithdraw, EventReopenReview,
			} {
				assert.Equal(t, terminal, engine.Apply(KindAppeal, terminal, event))
			}
		}
	})
}

func TestEngine_ApplyIsPure(t *testing.T) {
	engine := NewEngine(Tables())

	// The same (state, event) pair yields the same answer regardless of the
	// path taken to get there.
	first := engine.Apply(KindPayment, PaymentUnpaid, EventPartialPay)
	engine.Apply(KindPayment, PaymentPartial, EventContinuePayment)
	engine.Apply(KindPayment, PaymentPaid, EventWaiveFine)
	second := engine.Apply(KindPayment, PaymentUnpaid, EventPartialPay)

	assert.Equal(t, first, second)
}

func TestEngine_Resolve(t *testing.T) {
	engine := NewEngine(Tables())

	state, ok := engine.Resolve(KindOffense, "APPEALING")
	require.True(t, ok)
	assert.Equal(t, OffenseAppealing, state)

	state, ok = engine.Resolve(KindOffense, "LEGACY_CODE")
	require.True(t, ok)
	assert.Equal(t, OffenseUnprocessed, state, "unrecognized codes fall back to the initial state")

	_, ok = engine.Resolve(Kind("vehicle"), "ANY")
	assert.False(t, ok)
}

func TestTransitionTable_KnowsEvent(t *testing.T) {
	table := AppealTable()

	assert.True(t, table.KnowsEvent(EventReopenReview))
	assert.False(t, table.KnowsEvent(EventCancel), "offense events are not appeal events")
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{
		"offense":  KindOffense,
		"offenses": KindOffense,
		"payments": KindPayment,
		"Appeals":  KindAppeal,
	} {
		kind, err := ParseKind(raw)
		require.NoError(t, err)
		assert.Equal(t, want, kind)
	}

	_, err := ParseKind("vehicles")
	require.Error(t, err)
}
