// Package sched runs the board's scheduled units (tasks) from a bounded task table.
package sched

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Task is a unit of work scheduled on the board.
type Task interface {
	Run(context.Context) error
}

// TaskFunc is func form of Task.
type TaskFunc func(context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedTask struct {
	Task
	name string
}

func (t *namedTask) Name() string {
	return t.name
}

// NamedTask wraps a Task with a name.
func NamedTask(name string, task Task) Task {
	return &namedTask{name: name, Task: task}
}
