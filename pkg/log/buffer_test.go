package log

import (
	"sync"
	"testing"
)

// blockingTransporter holds deliveries until released.
type blockingTransporter struct {
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	count   int
}

func (b *blockingTransporter) Name() string { return "blocking" }

func (b *blockingTransporter) Write(Entry) error {
	<-b.release
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
	return nil
}

func (b *blockingTransporter) Close() error { return nil }

func (b *blockingTransporter) open() { b.once.Do(func() { close(b.release) }) }

func TestBuffer_Overflow_DropsOldest(t *testing.T) {
	bt := &blockingTransporter{release: make(chan struct{})}
	buf := NewBuffer(2, bt)

	for i := 0; i < 10; i++ {
		buf.Send(*NewEntry(Info, "x"))
	}
	if buf.DroppedCount() == 0 {
		t.Error("expected drops when the queue overflows")
	}

	bt.open()
	buf.Close()
}

func TestBuffer_Close_FlushesAndIgnoresLateSends(t *testing.T) {
	capture := &captureTransporter{}
	buf := NewBuffer(100, capture)

	for i := 0; i < 5; i++ {
		buf.Send(*NewEntry(Info, "queued"))
	}
	buf.Close()
	buf.Send(*NewEntry(Info, "late"))

	if got := len(capture.Entries()); got != 5 {
		t.Errorf("delivered %d entries, want 5", got)
	}
}
