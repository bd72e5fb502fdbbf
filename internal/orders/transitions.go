package orders

import (
	"fmt"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

// allowedTransitions is the full order state machine. Absent edges are
// forbidden; terminal states have no outgoing edges.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusCompleted,
	},
}

// CanTransition reports whether from → to is an allowed edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// InvalidTransition builds the state-conflict error for a forbidden edge.
func InvalidTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(
		pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot transition order from %s to %s", from, to),
	).WithDetails(map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}
