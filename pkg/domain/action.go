package domain

// Action names a coordinated write operation. It labels errors, log lines and
// metrics.
type Action string

// Coordinated actions.
const (
	ActionCreate     Action = "create"
	ActionCreateMany Action = "create_many"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
)
