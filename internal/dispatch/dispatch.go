// Package dispatch provides the per-subsystem command queue: a bounded FIFO
// of pending commands and a dispatcher that executes them through
// registered handlers. It is an independent producer/consumer structure;
// the storage engine is only touched by handlers that choose to log.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultQueueSize bounds a queue when no explicit capacity is given.
const DefaultQueueSize = 255

// Opcode identifies a subsystem command.
type Opcode uint8

// Command is one queued command with its raw argument bytes.
type Command struct {
	Op   Opcode
	Args []byte
}

// Handler executes one command against the underlying subsystem driver.
type Handler func(Command) error

var (
	ErrQueueFull     = errors.New("dispatch: command queue full")
	ErrQueueEmpty    = errors.New("dispatch: command queue empty")
	ErrUnknownOpcode = errors.New("dispatch: no handler registered for opcode")
)

// Queue is a bounded FIFO of pending commands, safe for concurrent
// producers and consumers.
type Queue struct {
	mu    sync.Mutex
	items []Command
	max   int
}

// NewQueue creates a queue holding at most max commands; max below one
// falls back to DefaultQueueSize.
func NewQueue(max int) *Queue {
	if max < 1 {
		max = DefaultQueueSize
	}
	return &Queue{max: max}
}

// Enqueue adds a command to the tail of the queue.
func (q *Queue) Enqueue(c Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.max {
		return fmt.Errorf("%w: %d pending", ErrQueueFull, len(q.items))
	}
	q.items = append(q.items, c)
	return nil
}

// Dequeue removes and returns the command at the head of the queue.
func (q *Queue) Dequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dispatcher executes queued commands through per-opcode handlers.
type Dispatcher struct {
	queue *Queue

	mu       sync.RWMutex
	handlers map[Opcode]Handler
}

// NewDispatcher creates a dispatcher draining the given queue.
func NewDispatcher(q *Queue) *Dispatcher {
	return &Dispatcher{queue: q, handlers: make(map[Opcode]Handler)}
}

// Register binds a handler to an opcode, replacing any previous one.
func (d *Dispatcher) Register(op Opcode, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[op] = h
}

// Queue returns the dispatcher's command queue for producers.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// ExecuteNext dequeues and executes one command. ErrQueueEmpty reports an
// empty queue; a command with no registered handler is dropped with
// ErrUnknownOpcode.
func (d *Dispatcher) ExecuteNext() error {
	c, ok := d.queue.Dequeue()
	if !ok {
		return ErrQueueEmpty
	}

	d.mu.RLock()
	h, ok := d.handlers[c.Op]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOpcode, c.Op)
	}
	return h(c)
}
