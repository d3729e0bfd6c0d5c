// Package runlock serializes work on a single payroll run.
package runlock

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("run lock wait timed out")

// Locker acquires an exclusive lock for key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
