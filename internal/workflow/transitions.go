package workflow

// transitionKey pairs the state an entity is in with the event applied to it.
type transitionKey struct {
	from  State
	event Event
}

// TransitionTable is the complete lifecycle of one entity kind as data. The
// absence of a key is the rejection rule; terminal states simply have no
// outgoing edges.
type TransitionTable struct {
	kind    Kind
	initial State
	edges   map[transitionKey]State
}

// Kind returns the entity kind this table governs.
func (t *TransitionTable) Kind() Kind { return t.kind }

// Initial returns the state newly created entities start in. It is also the
// fallback when a stored status code is not part of the lifecycle.
func (t *TransitionTable) Initial() State { return t.initial }

// Next returns the target state for (from, event), or false when the pair has
// no defined transition.
func (t *TransitionTable) Next(from State, event Event) (State, bool) {
	to, ok := t.edges[transitionKey{from: from, event: event}]
	return to, ok
}

// KnowsEvent reports whether event appears anywhere in the table. Used to
// distinguish a bad request (event not part of this lifecycle at all) from a
// rejection (event exists but not from the current state).
func (t *TransitionTable) KnowsEvent(event Event) bool {
	for key := range t.edges {
		if key.event == event {
			return true
		}
	}
	return false
}

// Offense lifecycle.
const (
	OffenseUnprocessed    State = "UNPROCESSED"
	OffenseProcessing     State = "PROCESSING"
	OffenseProcessed      State = "PROCESSED"
	OffenseAppealing      State = "APPEALING"
	OffenseAppealApproved State = "APPEAL_APPROVED"
	OffenseAppealRejected State = "APPEAL_REJECTED"
	OffenseCancelled      State = "CANCELLED"

	EventStartProcessing    Event = "START_PROCESSING"
	EventCompleteProcessing Event = "COMPLETE_PROCESSING"
	EventSubmitAppeal       Event = "SUBMIT_APPEAL"
	EventApproveAppeal      Event = "APPROVE_APPEAL"
	EventRejectAppeal       Event = "REJECT_APPEAL"
	EventWithdrawAppeal     Event = "WITHDRAW_APPEAL"
	EventCancel             Event = "CANCEL"
)

// Payment lifecycle.
const (
	PaymentUnpaid  State = "UNPAID"
	PaymentPartial State = "PARTIAL"
	PaymentPaid    State = "PAID"
	PaymentOverdue State = "OVERDUE"
	PaymentWaived  State = "WAIVED"

	EventPartialPay      Event = "PARTIAL_PAY"
	EventContinuePayment Event = "CONTINUE_PAYMENT"
	EventCompletePayment Event = "COMPLETE_PAYMENT"
	EventMarkOverdue     Event = "MARK_OVERDUE"
	EventWaiveFine       Event = "WAIVE_FINE"
)

// Appeal lifecycle.
const (
	AppealUnprocessed State = "UNPROCESSED"
	AppealUnderReview State = "UNDER_REVIEW"
	AppealApproved    State = "APPROVED"
	AppealRejected    State = "REJECTED"
	AppealWithdrawn   State = "WITHDRAWN"

	EventStartReview  Event = "START_REVIEW"
	EventApprove      Event = "APPROVE"
	EventReject       Event = "REJECT"
	EventWithdraw     Event = "WITHDRAW"
	EventReopenReview Event = "REOPEN_REVIEW"
)

// OffenseTable builds the offense lifecycle. CANCELLED is terminal and
// reachable from every non-terminal state.
func OffenseTable() *TransitionTable {
	return &TransitionTable{
		kind:    KindOffense,
		initial: OffenseUnprocessed,
		edges: map[transitionKey]State{
			{OffenseUnprocessed, EventStartProcessing}:    OffenseProcessing,
			{OffenseProcessing, EventCompleteProcessing}:  OffenseProcessed,
			{OffenseProcessed, EventSubmitAppeal}:         OffenseAppealing,
			{OffenseAppealing, EventApproveAppeal}:        OffenseAppealApproved,
			{OffenseAppealing, EventRejectAppeal}:         OffenseAppealRejected,
			{OffenseAppealing, EventWithdrawAppeal}:       OffenseProcessed,
			{OffenseUnprocessed, EventCancel}:             OffenseCancelled,
			{OffenseProcessing, EventCancel}:              OffenseCancelled,
			{OffenseProcessed, EventCancel}:               OffenseCancelled,
			{OffenseAppealing, EventCancel}:               OffenseCancelled,
			{OffenseAppealApproved, EventCancel}:          OffenseCancelled,
			{OffenseAppealRejected, EventCancel}:          OffenseCancelled,
		},
	}
}

// PaymentTable builds the payment lifecycle. WAIVED is terminal; a waiver is
// allowed from any other state, refunds are not modelled so PAID only waives.
func PaymentTable() *TransitionTable {
	return &TransitionTable{
		kind:    KindPayment,
		initial: PaymentUnpaid,
		edges: map[transitionKey]State{
			{PaymentUnpaid, EventPartialPay}:       PaymentPartial,
			{PaymentUnpaid, EventCompletePayment}:  PaymentPaid,
			{PaymentUnpaid, EventMarkOverdue}:      PaymentOverdue,
			{PaymentUnpaid, EventWaiveFine}:        PaymentWaived,
			{PaymentPartial, EventContinuePayment}: PaymentPaid,
			{PaymentPartial, EventMarkOverdue}:     PaymentOverdue,
			{PaymentPartial, EventWaiveFine}:       PaymentWaived,
			{PaymentOverdue, EventCompletePayment}: PaymentPaid,
			{PaymentOverdue, EventWaiveFine}:       PaymentWaived,
			{PaymentPaid, EventWaiveFine}:          PaymentWaived,
		},
	}
}

// AppealTable builds the appeal lifecycle. APPROVED and WITHDRAWN are
// terminal; REJECTED can be reopened for another review round.
func AppealTable() *TransitionTable {
	return &TransitionTable{
		kind:    KindAppeal,
		initial: AppealUnprocessed,
		edges: map[transitionKey]State{
			{AppealUnprocessed, EventStartReview}: AppealUnderReview,
			{AppealUnprocessed, EventWithdraw}:    AppealWithdrawn,
			{AppealUnderReview, EventApprove}:     AppealApproved,
			{AppealUnderReview, EventReject}:      AppealRejected,
			{AppealUnderReview, EventWithdraw}:    AppealWithdrawn,
			{AppealRejected, EventReopenReview}:   AppealUnderReview,
		},
	}
}

// Tables returns every lifecycle keyed by kind.
func Tables() map[Kind]*TransitionTable {
	return map[Kind]*TransitionTable{
		KindOffense: OffenseTable(),
		KindPayment: PaymentTable(),
		KindAppeal:  AppealTable(),
	}
}
