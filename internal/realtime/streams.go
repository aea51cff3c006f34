package realtime

// Named realtime streams a shopper dashboard can subscribe to.
const (
	// StreamOrders carries order book updates: new candidates, removals,
	// batch refreshes.
	StreamOrders = "orders"
	// StreamAlerts carries notification channel output: panels, sound
	// cues, system prompts.
	StreamAlerts = "alerts"
	// StreamHistory carries notification history changes, appends and
	// read-state flips.
	StreamHistory = "history"
	// StreamChat carries customer chat messages relayed from push.
	StreamChat = "chat"
)
