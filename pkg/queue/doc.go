// Package queue implements the in-process FIFO job queue.
//
// A Queue hands out monotonically increasing job ids, validates specs against
// per-type schemas, and wakes blocked consumers on enqueue without polling.
// Each Queue owns a TestMode that, while armed, diverts enqueued jobs into an
// inspectable buffer instead of making them available to consumers.
package queue
