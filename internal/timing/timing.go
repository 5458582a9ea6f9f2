// Package timing decides when simulated replies are typed and read, to
// imitate human pacing.
package timing

import (
	"math/rand"
	"time"
)

const (
	// MinReplyDelay and MaxReplyDelay bound the random reply delay, both
	// inclusive.
	MinReplyDelay = 10 * time.Second
	MaxReplyDelay = 60 * time.Second

	// ReadReceiptLead is how long before the reply the user's message is
	// marked as read.
	ReadReceiptLead = 10 * time.Second
)

// demoDelays is the fixed delay sequence for the first replies of the demo
// scenario, indexed by the number of replies already sent.
var demoDelays = [...]time.Duration{
	15 * time.Second,
	10 * time.Second,
	20 * time.Second,
	5 * time.Second,
	30 * time.Second,
}

// Engine computes reply delays and schedules the deferred reply events.
type Engine struct {
	scheduler Scheduler
	randMs    func(n int64) int64
}

// NewEngine creates an engine that schedules on the given scheduler.
func NewEngine(s Scheduler) *Engine {
	return &Engine{scheduler: s, randMs: rand.Int63n}
}

// ReplyDelay returns how long the character "types" before the reply
// appears. The demo scenario follows a fixed sequence for its first replies;
// beyond that, and for every other scenario, the delay is drawn uniformly at
// random from [MinReplyDelay, MaxReplyDelay]. replyCount is the number of
// replies already sent in this session.
func (e *Engine) ReplyDelay(demo bool, replyCount int) time.Duration {
	if demo && replyCount >= 0 && replyCount < len(demoDelays) {
		return demoDelays[replyCount]
	}
	spreadMs := int64((MaxReplyDelay - MinReplyDelay) / time.Millisecond)
	return MinReplyDelay + time.Duration(e.randMs(spreadMs+1))*time.Millisecond
}

// Schedule defers fn by d on the engine's scheduler.
func (e *Engine) Schedule(d time.Duration, fn func()) {
	e.scheduler.Schedule(d, fn)
}

// ReadReceiptDelay returns when the just-sent user message is marked read:
// ReadReceiptLead before the reply, clamped to zero.
func ReadReceiptDelay(replyDelay time.Duration) time.Duration {
	d := replyDelay - ReadReceiptLead
	if d < 0 {
		return 0
	}
	return d
}
