package events

// BroadcastType is the "type" field of a message pushed to subscribers.
type BroadcastType string

const (
	BroadcastProposalCreated BroadcastType = "proposal_created"
	BroadcastBetPlaced       BroadcastType = "bet_placed"
	BroadcastMarketResolved  BroadcastType = "market_resolved"
	BroadcastBetClaimed      BroadcastType = "bet_claimed"
	BroadcastAgentRegistered BroadcastType = "agent_registered"
)

// Broadcast is a change notification. Big integers in Data are decimal strings.
type Broadcast struct {
	Type BroadcastType  `json:"type"`
	Data map[string]any `json:"data"`
}
