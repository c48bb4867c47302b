package sched

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// DefaultTaskTotal is the default number of task slots.
const DefaultTaskTotal = 10

// Table runs tasks in a fixed number of slots and collects their errors.
type Table struct {
	Context context.Context
	Total   int

	names  []string
	errCh  chan error
	exitCh chan struct{}
	lock   sync.Mutex
}

// NewTable creates a table with a background context.
func NewTable(total int) *Table {
	return NewTableWith(context.Background(), total)
}

// NewTableWith creates a table with a specified context.
func NewTableWith(ctx context.Context, total int) *Table {
	if total <= 0 {
		total = DefaultTaskTotal
	}
	return &Table{
		Context: ctx,
		Total:   total,
		errCh:   make(chan error, total),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals cancels the table context on CtrlC and SIGTERM.
func (t *Table) HandleSignals() *Table {
	ctx, cancel := context.WithCancel(t.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	t.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(t.exitCh)
	}()
	return t
}

// Tasks returns the names of started tasks in slot order.
func (t *Table) Tasks() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.names...)
}

// Go starts tasks with the table context.
func (t *Table) Go(tasks ...Task) error {
	return t.GoWith(t.Context, tasks...)
}

// GoWith starts tasks with a specified context.
// No task is started if the slots can't hold all of them.
func (t *Table) GoWith(ctx context.Context, tasks ...Task) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.names)+len(tasks) > t.Total {
		return ErrTableFull
	}
	for _, task := range tasks {
		var name string
		if named, ok := task.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(len(t.names))
		}
		t.names = append(t.names, name)
		glog.V(4).Infof("start Task[%s]", name)
		go func(task Task, name string) {
			glog.V(4).Infof("Task[%s] started", name)
			err := task.Run(ctx)
			glog.V(4).Infof("Task[%s] stopped: %v", name, err)
			t.errCh <- err
		}(task, name)
	}
	return nil
}

// Wait waits until all tasks stop and aggregates errors.
func (t *Table) Wait() error {
	var errs AggregatedError
	for range t.Tasks() {
		select {
		case <-t.exitCh:
			return errors.New("forced exit")
		case err := <-t.errCh:
			if err != context.Canceled {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func which doesn't accept a context.
// onCancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser ensures closer.Close is called either on cancel or
// when fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
