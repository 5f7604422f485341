package relay

import (
	"container/list"
	"sync"
)

// PendingRequest is a chat request waiting for its conversation to go idle.
type PendingRequest struct {
	Inbound Inbound
	Prompt  string
	Mode    Mode
}

// Admission is the answer of QueueManager.Admit.
type Admission struct {
	RunNow bool
	// Position is the 1-based place in the queue when RunNow is false.
	Position int
}

type conversationState struct {
	processing bool
	pending    *list.List
}

// QueueManager serializes processing per conversation. A conversation is
// Idle until admitted, then Processing until Complete finds its queue empty.
// Different conversations never wait on each other.
type QueueManager struct {
	mu     sync.Mutex
	states map[ConversationID]*conversationState
}

func NewQueueManager() *QueueManager {
	return &QueueManager{
		states: make(map[ConversationID]*conversationState),
	}
}

// Admit decides whether req may run now. Without sequential mode every
// request runs immediately and no state is kept. Otherwise the first request
// of an idle conversation marks it Processing and runs; later ones are
// queued in arrival order.
func (q *QueueManager) Admit(id ConversationID, req PendingRequest, sequential bool) Admission {
	if !sequential {
		return Admission{RunNow: true}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.states[id]
	if !ok {
		state = &conversationState{pending: list.New()}
		q.states[id] = state
	}

	if !state.processing {
		state.processing = true
		return Admission{RunNow: true}
	}

	state.pending.PushBack(req)
	return Admission{Position: state.pending.Len()}
}

// Complete is called after each processed request of an admitted
// conversation. It hands back the next queued request, keeping the
// conversation Processing, or returns the conversation to Idle.
func (q *QueueManager) Complete(id ConversationID) (PendingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.states[id]
	if !ok {
		return PendingRequest{}, false
	}

	front := state.pending.Front()
	if front == nil {
		// idle with nothing queued is the same as never seen
		delete(q.states, id)
		return PendingRequest{}, false
	}

	state.pending.Remove(front)
	return front.Value.(PendingRequest), true
}

// Processing reports whether the conversation has a request in flight.
func (q *QueueManager) Processing(id ConversationID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.states[id]
	return ok && state.processing
}

// Pending returns the number of queued requests for the conversation.
func (q *QueueManager) Pending(id ConversationID) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.states[id]
	if !ok {
		return 0
	}
	return state.pending.Len()
}
