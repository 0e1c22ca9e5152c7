package runner

import (
	"sync"

	"fieldjudge/internal/output"
)

// orderedEmitter serializes concurrent workers into input-order appends so a
// run's artifacts diff reproducibly. Records arriving ahead of a gap are held
// until the gap resolves; on a cancelled run only the contiguous prefix is
// written (anything judged but unwritten is already in the cache).
type orderedEmitter struct {
	mu      sync.Mutex
	sink    Sink
	pending map[int]output.Record
	next    int
	flushed []output.Record
}

func newOrderedEmitter(sink Sink, size int) *orderedEmitter {
	return &orderedEmitter{
		sink:    sink,
		pending: make(map[int]output.Record, size),
	}
}

func (e *orderedEmitter) emit(index int, record output.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending[index] = record

	for {
		next, ok := e.pending[e.next]
		if !ok {
			return nil
		}
		if err := e.sink.Append(next); err != nil {
			return err
		}
		e.flushed = append(e.flushed, next)
		delete(e.pending, e.next)
		e.next++
	}
}

func (e *orderedEmitter) emitted() []output.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushed
}
