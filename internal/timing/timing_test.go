package timing

import (
	"testing"
	"time"
)

func TestDemoReplyDelaySequence(t *testing.T) {
	e := NewEngine(NewManualScheduler())

	want := []time.Duration{
		15 * time.Second,
		10 * time.Second,
		20 * time.Second,
		5 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := e.ReplyDelay(true, i); got != w {
			t.Errorf("demo reply %d: got %v, want %v", i, got, w)
		}
	}
}

func TestRandomReplyDelayBounds(t *testing.T) {
	e := NewEngine(NewManualScheduler())

	cases := []struct {
		name  string
		demo  bool
		count int
	}{
		{"demo beyond table", true, 5},
		{"non-demo first reply", false, 0},
		{"non-demo later reply", false, 17},
	}
	for _, tc := range cases {
		for i := 0; i < 500; i++ {
			d := e.ReplyDelay(tc.demo, tc.count)
			if d < MinReplyDelay || d > MaxReplyDelay {
				t.Fatalf("%s: delay %v outside [%v, %v]", tc.name, d, MinReplyDelay, MaxReplyDelay)
			}
		}
	}
}

func TestReadReceiptDelay(t *testing.T) {
	cases := []struct {
		reply time.Duration
		want  time.Duration
	}{
		{15 * time.Second, 5 * time.Second},
		{10 * time.Second, 0},
		{5 * time.Second, 0},
		{60 * time.Second, 50 * time.Second},
	}
	for _, tc := range cases {
		if got := ReadReceiptDelay(tc.reply); got != tc.want {
			t.Errorf("ReadReceiptDelay(%v) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestManualSchedulerRunsInDueOrder(t *testing.T) {
	s := NewManualScheduler()

	var order []string
	s.Schedule(20*time.Second, func() { order = append(order, "late") })
	s.Schedule(5*time.Second, func() { order = append(order, "early") })
	s.Schedule(10*time.Second, func() { order = append(order, "mid") })

	s.Advance(10 * time.Second)
	if len(order) != 2 || order[0] != "early" || order[1] != "mid" {
		t.Fatalf("after partial advance got %v", order)
	}

	s.Advance(10 * time.Second)
	if len(order) != 3 || order[2] != "late" {
		t.Fatalf("after full advance got %v", order)
	}
	if pending := s.Pending(); len(pending) != 0 {
		t.Fatalf("expected no pending tasks, got %v", pending)
	}
}

func TestManualSchedulerNestedTasks(t *testing.T) {
	s := NewManualScheduler()

	var ran []string
	s.Schedule(5*time.Second, func() {
		ran = append(ran, "outer")
		s.Schedule(2*time.Second, func() { ran = append(ran, "inner") })
	})

	s.Advance(10 * time.Second)
	if len(ran) != 2 || ran[1] != "inner" {
		t.Fatalf("nested task not run within advance window: %v", ran)
	}
}
