package telemetry

import (
	"github.com/sirupsen/logrus"
)

// Command is one inbound value written to a command pin.
type Command struct {
	Pin   Pin
	Value int
}

// Enabled reports whether the command toggles its flag on.
func (c Command) Enabled() bool {
	return c.Value != 0
}

// DefaultInboxSize bounds the number of commands waiting for the loop.
const DefaultInboxSize = 64

// Inbox queues commands from the MQTT dispatcher until the monitor loop
// drains them at the top of its next iteration. Push never blocks: when the
// queue is full the oldest command is dropped.
type Inbox struct {
	ch chan Command
}

// NewInbox returns an inbox holding at most size commands.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan Command, size)}
}

// Push enqueues c.
func (in *Inbox) Push(c Command) {
	for {
		select {
		case in.ch <- c:
			return
		default:
		}
		select {
		case old := <-in.ch:
			logrus.Warnf("telemetry: inbox full, dropping command pin=%d value=%d", old.Pin, old.Value)
		default:
		}
	}
}

// Drain returns every queued command in arrival order.
func (in *Inbox) Drain() []Command {
	var out []Command
	for {
		select {
		case c := <-in.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}
