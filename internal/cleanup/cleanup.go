// Package cleanup is the process-wide exit handler. Anything that must be
// undone on every exit path (terminal modes, scratch files, fetch clones)
// registers here, and main runs the handlers on normal exit, on error exit,
// and on SIGINT/SIGTERM.
package cleanup

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptExitCode is the status used when a signal ends the process.
const InterruptExitCode = 130

type handler struct {
	id int
	fn func()
}

var (
	mu       sync.Mutex
	handlers []handler
	nextID   int
)

// Register adds fn to the handler stack. The returned func removes it again
// without running it.
func Register(fn func()) (unregister func()) {
	mu.Lock()
	defer mu.Unlock()
	nextID++
	id := nextID
	handlers = append(handlers, handler{id: id, fn: fn})
	return func() {
		mu.Lock()
		defer mu.Unlock()
		for i, h := range handlers {
			if h.id == id {
				handlers = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
}

// RegisterPath schedules path for removal. Use the returned func once the path
// has been renamed into place or removed by its owner.
func RegisterPath(path string) (unregister func()) {
	return Register(func() {
		os.RemoveAll(path)
	})
}

// Pending returns the number of registered handlers.
func Pending() int {
	mu.Lock()
	defer mu.Unlock()
	return len(handlers)
}

// Run executes every registered handler in reverse registration order and
// clears the stack. It is safe to call more than once.
func Run() {
	mu.Lock()
	stack := handlers
	handlers = nil
	mu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].fn()
	}
}

// Trap runs the handlers and exits with InterruptExitCode when the process
// receives SIGINT or SIGTERM. The returned func stops watching.
func Trap() (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			Run()
			os.Exit(InterruptExitCode)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
		})
	}
}
