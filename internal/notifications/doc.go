// Package notifications delivers upload events via ntfy.
//
// The ntfy implementation posts to the topic configured under
// [notifications] and degrades to a no-op when no topic is set. Callers
// publish an Event with a Payload and never format messages themselves.
package notifications
