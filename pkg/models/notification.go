package models

// ChangeAction is the kind of mutation a notification announces.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// TaskReceivedEvent is the event name realtime clients listen for.
const TaskReceivedEvent = "TaskReceived"

// ChangeNotification is the message fanned out to every live connection after
// a mutation commits. The task payload is a best-effort snapshot taken at
// broadcast time; clients treat it as a hint and re-fetch the authoritative
// list rather than applying it directly.
type ChangeNotification struct {
	Event  string       `json:"event"`
	Task   *Task        `json:"task"`
	Action ChangeAction `json:"action"`
}

// NewChangeNotification builds a TaskReceived notification for a committed
// mutation.
func NewChangeNotification(task *Task, action ChangeAction) *ChangeNotification {
	return &ChangeNotification{
		Event:  TaskReceivedEvent,
		Task:   task,
		Action: action,
	}
}
