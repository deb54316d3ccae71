package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg is a serialized message held while the broker is unreachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages in publish order until they can be replayed. When
// full it drops the oldest message and charges the drop to that message's
// topic. Not safe for concurrent use; RealPublisher guards it with its mutex.
type outbox struct {
	slots   []bufferedMsg
	first   int // index of the oldest message
	n       int
	dropped map[string]int // cumulative, survives drain
	warned  bool           // overflow logged since the last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		slots:   make([]bufferedMsg, capacity),
		dropped: make(map[string]int),
	}
}

func (o *outbox) push(m bufferedMsg) {
	size := len(o.slots)
	if o.n < size {
		o.slots[(o.first+o.n)%size] = m
		o.n++
		return
	}

	lost := o.slots[o.first]
	o.dropped[lost.topic]++
	if !o.warned {
		log.WithFields(log.Fields{"capacity": size, "topic": lost.topic}).Warn("mqtt outbox full, dropping oldest")
		o.warned = true
	}
	o.slots[o.first] = m
	o.first = (o.first + 1) % size
}

// drain removes and returns every held message, oldest first.
func (o *outbox) drain() []bufferedMsg {
	if o.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, o.n)
	for i := 0; i < o.n; i++ {
		j := (o.first + i) % len(o.slots)
		out = append(out, o.slots[j])
		o.slots[j] = bufferedMsg{}
	}
	o.first, o.n = 0, 0
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return o.n
}

// droppedByTopic returns a copy of the drop counters.
func (o *outbox) droppedByTopic() map[string]int {
	out := make(map[string]int, len(o.dropped))
	for k, v := range o.dropped {
		out[k] = v
	}
	return out
}
