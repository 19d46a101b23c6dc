// Package webhook delivers signed event notifications to registered
// HTTP endpoints when workspace documents change.
package webhook

// Event types that subscriptions can listen for. EventWildcard matches
// every event.
const (
	EventTaskCreated        = "task.created"
	EventTaskUpdated        = "task.updated"
	EventDocCreated         = "doc.created"
	EventDocUpdated         = "doc.updated"
	EventSessionLogged      = "session.logged"
	EventPlanCreated        = "plan.created"
	EventPlanUpdated        = "plan.updated"
	EventProjectInitialized = "project.initialized"
	EventIndexReindexed     = "index.reindexed"
	EventWildcard           = "*"
)

var eventTypes = map[string]bool{
	EventTaskCreated:        true,
	EventTaskUpdated:        true,
	EventDocCreated:         true,
	EventDocUpdated:         true,
	EventSessionLogged:      true,
	EventPlanCreated:        true,
	EventPlanUpdated:        true,
	EventProjectInitialized: true,
	EventIndexReindexed:     true,
	EventWildcard:           true,
}

// KnownEventType reports whether t names a supported event type.
func KnownEventType(t string) bool {
	return eventTypes[t]
}
