package ledger

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInconsistentLedger is wrapped by every Anomaly.
var ErrInconsistentLedger = errors.New("inconsistent ledger")

// AnomalyKind names a referential-integrity violation in the event log.
type AnomalyKind string

const (
	AnomalyCancelledAndFilled AnomalyKind = "cancelled_and_filled"
	AnomalyUnknownOrder       AnomalyKind = "unknown_order"
	AnomalyDuplicateOrder     AnomalyKind = "duplicate_order"
	AnomalyDuplicateCancel    AnomalyKind = "duplicate_cancel"
	AnomalyDuplicateFill      AnomalyKind = "duplicate_fill"
)

// Anomaly reports one violation. The ledger is the authority, so anomalies are
// reported, never repaired: derivations still treat any cancelled or filled id as closed.
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	OrderID uint64      `json:"orderId"`
	Event   Kind        `json:"event"` // the event kind that exposed the violation
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("%s: %s on order %d (%s)", ErrInconsistentLedger, a.Kind, a.OrderID, a.Event)
}

func (a Anomaly) Unwrap() error { return ErrInconsistentLedger }

// Audit checks a snapshot for the properties the upstream ledger is trusted to
// enforce. The result is sorted by order id, then kind, and is nil for a clean log.
func Audit(s *Snapshot) []Anomaly {
	var out []Anomaly

	placed := make(map[uint64]int, len(s.orders))
	for _, o := range s.orders {
		placed[o.ID]++
		if placed[o.ID] == 2 {
			out = append(out, Anomaly{Kind: AnomalyDuplicateOrder, OrderID: o.ID, Event: KindOrderPlaced})
		}
	}

	cancelled := make(map[uint64]int, len(s.cancels))
	for _, c := range s.cancels {
		cancelled[c.ID]++
		switch {
		case placed[c.ID] == 0 && cancelled[c.ID] == 1:
			out = append(out, Anomaly{Kind: AnomalyUnknownOrder, OrderID: c.ID, Event: KindOrderCancelled})
		case cancelled[c.ID] == 2:
			out = append(out, Anomaly{Kind: AnomalyDuplicateCancel, OrderID: c.ID, Event: KindOrderCancelled})
		}
	}

	filled := make(map[uint64]int, len(s.fills))
	for _, f := range s.fills {
		filled[f.ID]++
		if filled[f.ID] == 1 {
			if placed[f.ID] == 0 {
				out = append(out, Anomaly{Kind: AnomalyUnknownOrder, OrderID: f.ID, Event: KindOrderFilled})
			}
			if cancelled[f.ID] > 0 {
				out = append(out, Anomaly{Kind: AnomalyCancelledAndFilled, OrderID: f.ID, Event: KindOrderFilled})
			}
		}
		if filled[f.ID] == 2 {
			out = append(out, Anomaly{Kind: AnomalyDuplicateFill, OrderID: f.ID, Event: KindOrderFilled})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
