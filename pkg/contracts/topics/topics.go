package topics

const (
	// Randomness (VRF)
	RandomnessRequested = "randomness_requested"
	RandomnessFulfilled = "randomness_fulfilled"

	// Bets
	BetPlaced   = "bet_placed"
	BetResolved = "bet_resolved"

	// DLQs
	PayoutFailed = "payout_failed"

	// Usado só pelo /healthz
	Healthcheck = "crylot_healthcheck"

	// Redis Pub/Sub
	OutcomesChannel = "crylot_outcomes"
	BoundsChannel   = "crylot_bounds"
)
