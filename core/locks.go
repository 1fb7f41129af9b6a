package core

import "sync"

// targetLocks serializes installs per cleaned target path within this
// process. Installs to distinct targets proceed independently.
type targetLocks struct {
	mutex    sync.Mutex
	byTarget map[string]*sync.Mutex
}

func newTargetLocks() *targetLocks {
	return &targetLocks{byTarget: make(map[string]*sync.Mutex)}
}

func (this *targetLocks) obtain(target string) *sync.Mutex {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	lock, found := this.byTarget[target]
	if !found {
		lock = new(sync.Mutex)
		this.byTarget[target] = lock
	}
	return lock
}
