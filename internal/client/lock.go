package client

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/1ureka/bluewing/internal/util"
)

// sessionLock is the session's critical section. With tracing on, every
// acquisition and release is logged with the caller's location so a stuck
// lock can be traced back to its holder.
type sessionLock struct {
	mu     sync.Mutex
	trace  bool
	log    util.Scope
	holder string
}

// caller names the function and file:line skip frames above its caller.
func caller(skip int) string {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+2, pcs) == 0 {
		return "unknown"
	}
	f, _ := runtime.CallersFrames(pcs).Next()
	name := f.Function[strings.LastIndexByte(f.Function, '.')+1:]
	return name + " " + filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
}

func (l *sessionLock) Lock()   { l.lockFrom(2) }
func (l *sessionLock) Unlock() { l.unlockFrom(2) }

// lockFrom takes the lock. The trace reports the frame skip levels above
// lockFrom, so 2 names whoever called Lock or locked.
func (l *sessionLock) lockFrom(skip int) {
	if !l.trace {
		l.mu.Lock()
		return
	}
	at := caller(skip)
	l.log.Debug("lock wanted at %s", at)
	l.mu.Lock()
	l.holder = at
	l.log.Debug("lock taken at %s", at)
}

func (l *sessionLock) unlockFrom(skip int) {
	if !l.trace {
		l.mu.Unlock()
		return
	}
	at, was := caller(skip), l.holder
	l.holder = ""
	l.mu.Unlock()
	l.log.Debug("lock released at %s (taken at %s)", at, was)
}
