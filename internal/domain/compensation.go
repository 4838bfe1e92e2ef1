package domain

import (
	"time"
)

// Saga step name constants for the completion sequence.
const (
	StepReserveInventory = "reserve_inventory"
	StepAuthorizePayment = "authorize_payment"
	StepCreateOrder      = "create_order"
)

// Compensating action name constants, one per saga step.
const (
	ActionReleaseReservation = "release_reservation"
	ActionVoidAuthorization  = "void_authorization"
	ActionCancelOrder        = "cancel_order"
)

// Compensation entry status constants.
const (
	CompensationPending   = "pending"
	CompensationCompleted = "completed"
	CompensationFailed    = "failed"
)

// CompensationEntry records a hold taken by a saga step and the outcome of
// undoing it. Entries are appended in step order; a pending entry means the
// downstream side effect is still live and must be released before the
// session can terminate cleanly.
type CompensationEntry struct {
	Step       string    `json:"step"`
	Action     string    `json:"action"`
	Ref        string    `json:"ref"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts,omitempty"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
}

// RecordHold appends a pending compensation entry for a completed saga step.
// Ref is the downstream identifier needed to undo it (reservation id,
// authorization id, order id).
func (s *CheckoutSession) RecordHold(step, action, ref string) {
	s.CompensationLog = append(s.CompensationLog, CompensationEntry{
		Step:   step,
		Action: action,
		Ref:    ref,
		Status: CompensationPending,
	})
}

// ResolveHold marks the entry for the given step with the compensation
// outcome. Unknown steps are ignored.
func (s *CheckoutSession) ResolveHold(step, status string, attempts int, errMsg string) {
	for i := range s.CompensationLog {
		if s.CompensationLog[i].Step == step && s.CompensationLog[i].Status == CompensationPending {
			s.CompensationLog[i].Status = status
			s.CompensationLog[i].Attempts = attempts
			s.CompensationLog[i].Error = errMsg
			s.CompensationLog[i].ExecutedAt = time.Now().UTC()
			return
		}
	}
}

// PendingHolds returns the compensation entries whose side effects are still
// live, in reverse step order (the order they must be undone in).
func (s *CheckoutSession) PendingHolds() []CompensationEntry {
	var holds []CompensationEntry
	for i := len(s.CompensationLog) - 1; i >= 0; i-- {
		if s.CompensationLog[i].Status == CompensationPending {
			holds = append(holds, s.CompensationLog[i])
		}
	}
	return holds
}
