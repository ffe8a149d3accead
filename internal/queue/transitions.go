package queue

import "escashop/backend/internal/models"

// transitionMap holds the legal state graph. processing is an optional
// detour between serving and completed; cancelled is reachable from any
// non-terminal state. Terminal states have no outgoing edges here; moves
// out of them are forced transitions, legal only for admin-equivalent
// roles and applied outside the standard graph.
var transitionMap = map[string][]string{
	models.StatusWaiting:    {models.StatusServing, models.StatusCancelled},
	models.StatusServing:    {models.StatusProcessing, models.StatusCompleted, models.StatusCancelled},
	models.StatusProcessing: {models.StatusCompleted, models.StatusCancelled},
}

// ValidTransition reports whether the state graph permits from→to.
func ValidTransition(from, to string) bool {
	for _, next := range transitionMap[from] {
		if next == to {
			return true
		}
	}
	return false
}
