// Package locks serializes state-changing operations per client.
package locks

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/moby/locker"
)

// ClientLocks hands out one named lock per client id. The underlying locker
// drops a name once nobody holds or waits on it.
type ClientLocks struct {
	locker  *locker.Locker
	pending atomic.Int64
}

// NewClientLocks creates an empty lock table
func NewClientLocks() *ClientLocks {
	return &ClientLocks{locker: locker.New()}
}

// Lock blocks until the client's lock is held and returns the release function.
// Calling the release function more than once is a no-op.
func (l *ClientLocks) Lock(clientID int64) (unlock func()) {
	name := strconv.FormatInt(clientID, 10)
	l.pending.Add(1)
	l.locker.Lock(name)

	var once sync.Once
	return func() {
		once.Do(func() {
			// cannot fail: the name stays locked until this call
			_ = l.locker.Unlock(name)
			l.pending.Add(-1)
		})
	}
}

// Held returns the number of Lock calls currently holding or waiting.
func (l *ClientLocks) Held() int {
	return int(l.pending.Load())
}
