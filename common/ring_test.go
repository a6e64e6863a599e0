package common

import (
	"reflect"
	"sync"
	"testing"
)

func TestRingBuffer_AddAndGet(t *testing.T) {
	ringBuffer := NewRingBuffer[int](3)
	if got := ringBuffer.Get(); len(got) != 0 {
		t.Errorf("Expected empty, but got %v", got)
	}
	ringBuffer.Add(1)
	ringBuffer.Add(2)
	ringBuffer.Add(3)

	expected := []int{1, 2, 3}
	if actual := ringBuffer.Get(); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}

	ringBuffer.Add(4)
	expected = []int{2, 3, 4}
	if actual := ringBuffer.Get(); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}
}

func TestRingBuffer_Tail(t *testing.T) {
	ringBuffer := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		ringBuffer.Add(i)
	}
	expected := []int{5, 6}
	if actual := ringBuffer.Tail(2); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}
	expected = []int{3, 4, 5, 6}
	if actual := ringBuffer.Tail(10); !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected %v, but got %v", expected, actual)
	}
}

func TestRingBuffer_LastAndReset(t *testing.T) {
	ringBuffer := NewRingBuffer[string](2)
	if _, ok := ringBuffer.Last(); ok {
		t.Error("Expected no last element")
	}
	ringBuffer.Add("a")
	ringBuffer.Add("b")
	ringBuffer.Add("c")
	if v, ok := ringBuffer.Last(); !ok || v != "c" {
		t.Errorf("Expected c, but got %v", v)
	}
	ringBuffer.Reset()
	if ringBuffer.Len() != 0 {
		t.Errorf("Expected 0, but got %d", ringBuffer.Len())
	}
}

func TestRingBufferConcurrent(t *testing.T) {
	ringBuffer := NewRingBuffer[int](100)
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ringBuffer.Add(j)
				_ = ringBuffer.Tail(5)
			}
		}()
	}
	wg.Wait()
	if ringBuffer.Len() != 100 {
		t.Errorf("Expected 100, but got %d", ringBuffer.Len())
	}
}
