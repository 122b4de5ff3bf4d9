package constant

// Event topics
const (
	TopicSessionEvents = "session.events"
)

// Session event types
const (
	EventSessionCreated   = "session.created"
	EventSessionActivated = "session.activated"
	EventSessionDeleted   = "session.deleted"
	EventSessionRenamed   = "session.renamed"
	EventMessageAppended  = "session.message_appended"
)
