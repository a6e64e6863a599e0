package sample

import (
	"math/rand"
	"sync"
	"testing"
)

func TestQueue_Interleaved(t *testing.T) {
	s1 := Inertial{Time: 1}
	s2 := Inertial{Time: 3}
	s3 := Inertial{Time: 6}
	g1 := Positioning{Time: 2}
	g2 := Positioning{Time: 4}
	g3 := Positioning{Time: 5}

	q := NewQueue()
	q.Push(s1)
	q.Push(s2)
	q.Push(s3)
	q.Push(g1)
	q.Push(g2)
	q.Push(g3)

	expected := []Event{s1, g1, s2, g2, g3, s3}
	for i, want := range expected {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Expected event %d, but queue was empty", i)
		}
		if got != want {
			t.Errorf("Expected %v, but got %v", want, got)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, but got %d", q.Len())
	}
	if _, ok := q.Pop(); ok {
		t.Error("Expected Pop on empty queue to report false")
	}
}

func TestQueue_AnyInterleavingIsAscending(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		q := NewQueue()
		n := 200
		perm := rng.Perm(n)
		for _, ts := range perm {
			if ts%2 == 0 {
				q.Push(Inertial{Time: int64(ts)})
			} else {
				q.Push(Positioning{Time: int64(ts)})
			}
		}
		last := int64(-1)
		count := 0
		for {
			ev, ok := q.Pop()
			if !ok {
				break
			}
			if ev.Timestamp() <= last {
				t.Fatalf("Expected strictly ascending, but got %d after %d", ev.Timestamp(), last)
			}
			last = ev.Timestamp()
			count++
		}
		if count != n {
			t.Fatalf("Expected %d events, but got %d", n, count)
		}
	}
}

func TestQueue_TieBreakIsInsertionOrder(t *testing.T) {
	q := NewQueue()
	a := Positioning{Time: 10, Provider: "a"}
	b := Inertial{Time: 10, EastAcceleration: 1}
	c := Positioning{Time: 10, Provider: "c"}
	early := Inertial{Time: 9}
	q.Push(a)
	q.Push(b)
	q.Push(c)
	q.Push(early)

	got := q.DrainOrdered()
	expected := []Event{early, a, b, c}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d events, but got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %v at %d, but got %v", expected[i], i, got[i])
		}
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	wg := sync.WaitGroup{}
	perProducer := 1000
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ts := int64(i*2 + p)
				if p == 0 {
					q.Push(Inertial{Time: ts})
				} else {
					q.Push(Positioning{Time: ts})
				}
			}
		}(p)
	}
	wg.Wait()

	events := q.DrainOrdered()
	if len(events) != 2*perProducer {
		t.Fatalf("Expected %d, but got %d", 2*perProducer, len(events))
	}
	for i, ev := range events {
		if ev.Timestamp() != int64(i) {
			t.Fatalf("Expected timestamp %d, but got %d", i, ev.Timestamp())
		}
	}
}

func TestQueue_ClearAndNil(t *testing.T) {
	q := NewQueue()
	q.Push(nil)
	if q.Len() != 0 {
		t.Errorf("Expected nil push to be ignored, but got len %d", q.Len())
	}
	q.Push(Inertial{Time: 1})
	q.Push(Inertial{Time: 2})
	if q.Len() != 2 {
		t.Errorf("Expected 2 queued, but got %d", q.Len())
	}
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Expected 0 after clear, but got %d", q.Len())
	}
}

func TestFix_Positioning(t *testing.T) {
	f := Fix{Latitude: 1, Longitude: 2, Altitude: 3, Speed: 4, Bearing: 5, Accuracy: 6, Provider: "gps", Timestamp: 7}
	p := f.Positioning()
	if p.Latitude != 1 || p.Longitude != 2 || p.Course != 5 || p.PositionNoise != 6 || p.Timestamp() != 7 || p.Provider != "gps" {
		t.Errorf("Unexpected conversion: %+v", p)
	}
	if p.Point() != f.Point() {
		t.Errorf("Expected %v, but got %v", f.Point(), p.Point())
	}
}
