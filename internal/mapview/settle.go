package mapview

import "github.com/atlo/dashboard/pkg/core"

// oneShot is a group of engine subscriptions of which only the first
// delivered event counts. Delivery is funnelled through the controller
// mailbox, and every subscription in the group is dropped once it fires.
type oneShot struct {
	unsubs []func()
	done   bool
}

// once subscribes fn to the first of events. fn runs on the controller
// goroutine.
func (c *Controller) once(fn func(Event), events ...EventType) *oneShot {
	s := &oneShot{}
	for _, ev := range events {
		unsub := c.engine.On(ev, "", func(e Event) {
			c.post(func() {
				if s.done {
					return
				}
				s.stop()
				fn(e)
			})
		})
		s.unsubs = append(s.unsubs, unsub)
	}
	return s
}

func (s *oneShot) stop() {
	if s == nil {
		return
	}
	s.done = true
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// waiter carries one result from the controller goroutine to a caller.
type waiter chan error

func newWaiter() waiter {
	return make(waiter, 1)
}

func (w waiter) resolve(err error) {
	select {
	case w <- err:
	default:
	}
}

// pendingStyle is a style swap waiting for the engine to settle.
type pendingStyle struct {
	styleID  string
	camera   core.CameraView
	listener *oneShot
	result   waiter
}
