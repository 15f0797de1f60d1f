package game

import "testing"

func TestEnqueueIdleChannelHandsBackImmediateEntry(t *testing.T) {
	q := NewQueue()
	req := NewRequest("chan", "123", "viewer", 5)

	res, immediate := q.Enqueue(req, false, 50)
	if immediate == nil {
		t.Fatal("idle channel should get an immediate entry")
	}
	if immediate.Request != req {
		t.Fatal("immediate entry not linked to the request")
	}
	if res.AmountAdded != 4 {
		t.Fatalf("AmountAdded = %d, want 4 (one runs immediately)", res.AmountAdded)
	}
	if q.Size("chan") != 4 {
		t.Fatalf("queue size = %d", q.Size("chan"))
	}
	if !req.Consumed() {
		t.Fatal("request not marked consumed")
	}
}

func TestEnqueueActiveChannelQueuesEverything(t *testing.T) {
	q := NewQueue()
	req := NewRequest("chan", "123", "viewer", 3)

	res, immediate := q.Enqueue(req, true, 50)
	if immediate != nil {
		t.Fatal("active channel must not get an immediate entry")
	}
	if res.AmountAdded != 3 || q.Size("chan") != 3 {
		t.Fatalf("AmountAdded = %d, size = %d", res.AmountAdded, q.Size("chan"))
	}
}

func TestEnqueueConsumedRequestAddsNothing(t *testing.T) {
	q := NewQueue()
	req := NewRequest("chan", "123", "viewer", 3)
	q.Enqueue(req, true, 50)

	res, immediate := q.Enqueue(req, true, 50)
	if immediate != nil || res.AmountAdded != 0 {
		t.Fatalf("re-submission added entries: %+v", res)
	}
	if q.Size("chan") != 3 {
		t.Fatalf("size = %d after re-submission", q.Size("chan"))
	}
}

func TestEnqueueCapTruncatesSilently(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewRequest("chan", "123", "a", 4), true, 4)

	res, _ := q.Enqueue(NewRequest("chan", "123", "b", 10), true, 4)
	if res.AmountAdded != 0 {
		t.Fatalf("AmountAdded = %d against a full queue", res.AmountAdded)
	}
	if res.OldSize != 4 || res.NewSize != 4 {
		t.Fatalf("sizes = %d -> %d", res.OldSize, res.NewSize)
	}
}

func TestEnqueuePartialFill(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewRequest("chan", "123", "a", 3), true, 5)

	res, _ := q.Enqueue(NewRequest("chan", "123", "b", 10), true, 5)
	if res.AmountAdded != 2 {
		t.Fatalf("AmountAdded = %d, want 2 (cap 5, 3 queued)", res.AmountAdded)
	}
	if res.NewSize != 5 {
		t.Fatalf("NewSize = %d", res.NewSize)
	}
}

func TestEnqueueZeroGames(t *testing.T) {
	q := NewQueue()
	req := NewRequest("chan", "123", "viewer", 0)
	res, immediate := q.Enqueue(req, false, 50)
	if immediate != nil || res.AmountAdded != 0 {
		t.Fatalf("zero-game request produced work: %+v", res)
	}
	if req.Consumed() {
		t.Fatal("zero-game request should not be consumed")
	}
}

func TestPopOnePerIdleChannel(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewRequest("one", "1", "a", 3), true, 50)
	q.Enqueue(NewRequest("two", "2", "b", 2), true, 50)
	q.Enqueue(NewRequest("busy", "3", "c", 2), true, 50)

	ready := q.Pop(map[string]bool{"busy": true})
	if len(ready) != 2 {
		t.Fatalf("popped %d entries, want 2", len(ready))
	}
	for _, e := range ready {
		if e.Request.Channel == "busy" {
			t.Fatal("popped entry for an active channel")
		}
	}
	if q.Size("one") != 2 || q.Size("two") != 1 || q.Size("busy") != 2 {
		t.Fatalf("sizes after pop: one=%d two=%d busy=%d", q.Size("one"), q.Size("two"), q.Size("busy"))
	}
}

func TestRequeuePreservesOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewRequest("chan", "1", "a", 2), true, 50)

	ready := q.Pop(nil)
	if len(ready) != 1 {
		t.Fatalf("popped %d", len(ready))
	}
	first := ready[0]
	q.requeue(first)
	again := q.Pop(nil)
	if len(again) != 1 || again[0] != first {
		t.Fatal("requeued entry not at the front")
	}
}

func TestClearAndTotals(t *testing.T) {
	q := NewQueue()
	q.Enqueue(NewRequest("one", "1", "a", 3), true, 50)
	q.Enqueue(NewRequest("two", "2", "b", 2), true, 50)

	if q.TotalSize() != 5 {
		t.Fatalf("TotalSize = %d", q.TotalSize())
	}
	if n := q.Clear("one"); n != 3 {
		t.Fatalf("Clear removed %d", n)
	}
	if q.Size("one") != 0 || q.TotalSize() != 2 {
		t.Fatalf("after clear: size=%d total=%d", q.Size("one"), q.TotalSize())
	}
	if n := q.Clear("missing"); n != 0 {
		t.Fatalf("clearing unknown channel removed %d", n)
	}
}
