package mqtt

import "sync"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages while the broker is unreachable. Retained messages
// are state, not history: a newer one replaces any queued retained message on
// the same topic, so a flapping LED or repeated STARTUP replays only the
// latest value. Reading events are kept in order up to capacity, oldest
// dropped first.
//
// push, drainAll and len expect the caller to hold mu; the other methods
// lock it themselves. The outbox only
// reports online once next has handed out everything queued, so a message
// held while a replay is in progress is replayed by the same connect.
type outbox struct {
	mu       sync.Mutex
	msgs     []bufferedMsg
	capacity int
	overflow bool // a message was dropped since the last drain
	online   bool
	epoch    int // bumped by offline
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

// hold queues msg unless the connection is online. held is false when the
// caller should send msg directly.
func (o *outbox) hold(msg bufferedMsg) (held, firstDrop bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.online {
		return false, false
	}
	return true, o.push(msg)
}

// connecting returns the epoch a replay belongs to.
func (o *outbox) connecting() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}

// next returns the queued messages for replay. Once nothing is left it
// marks the outbox online and returns nil. If the connection was lost since
// connecting returned epoch, it returns nil and leaves the queue for the
// next connect.
func (o *outbox) next(epoch int) []bufferedMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch {
		return nil
	}
	pending := o.drainAll()
	if pending == nil {
		o.online = true
	}
	return pending
}

// offline makes hold queue messages again.
func (o *outbox) offline() {
	o.mu.Lock()
	o.online = false
	o.epoch++
	o.mu.Unlock()
}

// size returns the number of queued messages.
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.len()
}

// push queues msg. It returns true the first time a message is dropped for
// lack of space since the last drain.
func (o *outbox) push(msg bufferedMsg) (firstDrop bool) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}

	if len(o.msgs) == o.capacity {
		firstDrop = !o.overflow
		o.overflow = true
		o.msgs = o.msgs[1:]
	}
	o.msgs = append(o.msgs, msg)
	return firstDrop
}

// drainAll returns the queued messages oldest first and empties the outbox.
func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.overflow = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
