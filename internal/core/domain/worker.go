package domain

// Control message types exchanged between the dispatcher and a background
// context. Any other type is a job message for a pooled worker.
const (
	MessageCreatePooledWorker    = "createPooledWorker"
	MessageTerminatePooledWorker = "terminatePooledWorker"

	// MessageError is sent back by a background context when it cannot
	// deliver or execute something for a pooled worker.
	MessageError = "error"
)

// NoPooledWorker is the PooledWorkerID of control messages; the target id
// travels in their data instead.
const NoPooledWorker = -1

// Message is the unit exchanged with a background context.
type Message struct {
	PooledWorkerID int    `json:"pooledWorkerId"`
	Type           string `json:"type"`
	Data           any    `json:"data"`
}

// IsControl reports whether m is addressed to the context itself.
func (m Message) IsControl() bool {
	return m.PooledWorkerID == NoPooledWorker &&
		(m.Type == MessageCreatePooledWorker || m.Type == MessageTerminatePooledWorker)
}

// CreatePooledWorker builds the control message that instantiates a pooled
// worker inside a background context.
func CreatePooledWorker(id int, bodyURL string, options map[string]any) Message {
	if options == nil {
		options = map[string]any{}
	}
	return Message{
		PooledWorkerID: NoPooledWorker,
		Type:           MessageCreatePooledWorker,
		Data: map[string]any{
			"pooledWorkerId": id,
			"bodyURL":        bodyURL,
			"options":        options,
		},
	}
}

// TerminatePooledWorker builds the control message that releases a pooled
// worker inside a background context.
func TerminatePooledWorker(id int) Message {
	return Message{
		PooledWorkerID: NoPooledWorker,
		Type:           MessageTerminatePooledWorker,
		Data:           map[string]any{"pooledWorkerId": id},
	}
}
