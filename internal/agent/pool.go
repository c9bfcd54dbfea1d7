package agent

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Factory creates a connected Session for a new conversation.
type Factory func(ctx context.Context) (*Session, error)

// Pool keeps one Session per conversation id.
type Pool struct {
	factory Factory
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*pooled
	closed   bool
}

type pooled struct {
	session  *Session
	lastUsed time.Time
	inUse    int
}

var ErrPoolClosed = errors.New("session pool closed")

func NewPool(factory Factory) *Pool {
	return &Pool{
		factory:  factory,
		now:      time.Now,
		sessions: make(map[string]*pooled),
	}
}

// Acquire returns the session for id, creating it on first use. The release
// func must be called when the caller is done with the session.
func (p *Pool) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, ErrPoolClosed
	}
	if e, ok := p.sessions[id]; ok {
		e.inUse++
		e.lastUsed = p.now()
		p.mu.Unlock()
		return e.session, p.releaser(id, e), nil
	}
	p.mu.Unlock()

	// Connecting spawns a process, so it happens outside the lock.
	s, err := p.factory(ctx)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Close()
		return nil, nil, ErrPoolClosed
	}
	if e, ok := p.sessions[id]; ok {
		// Lost a race with a concurrent Acquire for the same id.
		e.inUse++
		e.lastUsed = p.now()
		p.mu.Unlock()
		s.Close()
		return e.session, p.releaser(id, e), nil
	}
	e := &pooled{session: s, lastUsed: p.now(), inUse: 1}
	p.sessions[id] = e
	p.mu.Unlock()

	log.Printf("agent: opened session %s", id)
	return s, p.releaser(id, e), nil
}

func (p *Pool) releaser(id string, e *pooled) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			e.inUse--
			e.lastUsed = p.now()
			p.mu.Unlock()
		})
	}
}

// Reap closes sessions idle for longer than maxIdle and returns how many
// were closed. Sessions in use are skipped.
func (p *Pool) Reap(maxIdle time.Duration) int {
	now := p.now()
	var victims []*pooled
	var ids []string

	p.mu.Lock()
	for id, e := range p.sessions {
		if e.inUse > 0 || now.Sub(e.lastUsed) < maxIdle {
			continue
		}
		victims = append(victims, e)
		ids = append(ids, id)
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	for i, e := range victims {
		if err := e.session.Close(); err != nil {
			log.Printf("agent: closing session %s: %v", ids[i], err)
		}
		log.Printf("agent: reaped session %s (last used %s)", ids[i], humanize.RelTime(e.lastUsed, now, "ago", "from now"))
	}
	return len(victims)
}

// Len reports the number of open sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Close closes every session and rejects further Acquire calls.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	sessions := p.sessions
	p.sessions = make(map[string]*pooled)
	p.mu.Unlock()

	var errs []error
	for _, e := range sessions {
		if err := e.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
