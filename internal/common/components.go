package common

const (
	ComponentPoller      = "poller"
	ComponentLogSource   = "log-source"
	ComponentDecoder     = "decoder"
	ComponentProjector   = "projector"
	ComponentNotifier    = "notifier"
	ComponentCheckpoint  = "checkpoint"
	ComponentStore       = "store"
	ComponentMaintenance = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentPoller:      {},
	ComponentLogSource:   {},
	ComponentDecoder:     {},
	ComponentProjector:   {},
	ComponentNotifier:    {},
	ComponentCheckpoint:  {},
	ComponentStore:       {},
	ComponentMaintenance: {},
}
