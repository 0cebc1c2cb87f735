// Package locker provides an HTTP middleware that can lock out a
// device's routes, returning 423 (Locked) while an operator holds the
// instrument.  Useful when a capture sequence must not be disturbed by
// other clients reconfiguring the scope mid-sweep.
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/oscilab/scopehal/server"

	"goji.io/pat"
)

// Inject adds GET/POST /lock routes to an HTTPer, which manipulate
// the locker
func Inject(other server.HTTPer, l *Locker) {
	rt := other.RT()
	rt[pat.Get("/lock")] = l.HTTPGet
	rt[pat.Post("/lock")] = l.HTTPSet
}

// Locker rejects requests while locked.  Unlike a mutex, a locked
// Locker does not block; requests bounce immediately.
type Locker struct {
	locked atomic.Bool

	// DoNotProtect holds path substrings exempt from the lock
	DoNotProtect []string
}

// New returns a Locker that never locks out the lock routes themselves
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() { l.locked.Store(true) }

// Unlock the locker
func (l *Locker) Unlock() { l.locked.Store(false) }

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool { return l.locked.Load() }

// Check is the middleware; it returns 423 for protected paths while
// the locker is held
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() {
			protected := true
			for _, str := range l.DoNotProtect {
				if strings.Contains(r.URL.Path, str) {
					protected = false
					break
				}
			}
			if protected {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet locks or unlocks based on json:bool in the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}
