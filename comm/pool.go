package comm

import (
	"io"
	"sync"
	"time"
)

// CreationFunc is a function which returns a new "connection" to
// something; a closure should be used to encapsulate the variables and
// functions needed
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool is a communication pool which holds one or more connections to a
// device that will be closed if they are not in use, and re-opened as
// needed.  It is concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	maxSize int                     // maximum number of connections, == cap(conns)
	onLease int                     // number of connections given out
	timeout time.Duration           // idle time before all connections are freed
	conns   chan io.ReadWriteCloser // the circular buffer of connections
	timer   *time.Timer             // destroys idle connections after all are returned
	maker   CreationFunc

	reclaiming bool
	mu         sync.Mutex
}

// NewPool creates a new Pool of up to maxSize connections which are
// reclaimed after sitting idle for timeout.
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		timer:   time.NewTimer(timeout),
		maker:   maker,
	}
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get retrieves a connection from the pool, blocking until one is
// available if all are in use.  The caller has exclusive use of the
// connection until it is returned with Put, discarded with Destroy, or
// handed back with ReturnWithError.  If the error from Get is not nil,
// the connection must not be returned to the pool.
func (p *Pool) Get() (io.ReadWriter, error) {
	p.timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	// short circuit: a connection is ready to hand out
	if len(p.conns) > 0 {
		ret := <-p.conns
		p.onLease++
		return ret, nil
	}
	// all connections given out, wait for a return
	if p.onLease == p.maxSize {
		ret := <-p.conns
		p.onLease++
		return ret, nil
	}
	// none available and room to grow; make one
	c, err := p.maker()
	if err == nil {
		p.onLease++
	}
	return c, err
}

// Put restores a connection to the pool.  It may be reused, or will be
// freed after all connections are returned and the idle timeout passes.
// Junk connections (ones that always error) should be Destroy()'d.
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	p.conns <- rwc
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
	if len(p.conns) == p.maxSize {
		p.startReclaim()
	}
}

// Destroy immediately frees a connection.  Use instead of Put when the
// connection has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	rwc.Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
}

// ReturnWithError puts the connection back when err is nil and destroys
// it otherwise.  Exists for the deferred one-liner at every call site.
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if err != nil {
		p.Destroy(rw)
		return
	}
	p.Put(rw)
}

// Size returns the number of connections in the pool or given out from it.
func (p *Pool) Size() int {
	return len(p.conns) + p.onLease
}

// Active returns the number of connections currently given out.
func (p *Pool) Active() int {
	return p.onLease
}

// startReclaim spawns a goroutine to close all pooled connections after
// the idle timeout elapses.
func (p *Pool) startReclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reclaiming {
		return
	}
	p.reclaiming = true
	p.timer.Reset(p.timeout)
	go func() {
		<-p.timer.C
		for {
			select {
			case closer := <-p.conns:
				closer.Close()
			default:
				p.mu.Lock()
				p.reclaiming = false
				p.mu.Unlock()
				return
			}
		}
	}()
}
