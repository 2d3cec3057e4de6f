package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/orchestrator"
)

var ErrNotFound = errors.New("session not found")

// ObserverFactory builds the progress observer for a new session.
type ObserverFactory func(id uuid.UUID) orchestrator.Observer

type entry struct {
	session  *orchestrator.Session
	frames   *orchestrator.FrameBuffer
	ready    bool
	lastSeen time.Time
}

// Manager owns the live conversation sessions and expires idle ones.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry

	replies   orchestrator.ReplyProvider
	analyzer  orchestrator.EmotionAnalyzer
	cfg       orchestrator.Config
	frameTTL  time.Duration
	idleTTL   time.Duration
	observers ObserverFactory
	now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

type Option func(*Manager)

func WithObserverFactory(f ObserverFactory) Option {
	return func(m *Manager) { m.observers = f }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(replies orchestrator.ReplyProvider, analyzer orchestrator.EmotionAnalyzer, cfg orchestrator.Config, frameTTL, idleTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[uuid.UUID]*entry),
		replies:  replies,
		analyzer: analyzer,
		cfg:      cfg,
		frameTTL: frameTTL,
		idleTTL:  idleTTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session. Its capture source stays unattached until the
// client reports a ready camera or pushes a frame.
func (m *Manager) Create() *orchestrator.Session {
	id := uuid.New()

	var opts []orchestrator.Option
	if m.observers != nil {
		opts = append(opts, orchestrator.WithObserver(m.observers(id)))
	}
	s := orchestrator.NewSession(id, m.replies, m.analyzer, m.cfg, opts...)

	m.mu.Lock()
	m.sessions[id] = &entry{
		session:  s,
		frames:   orchestrator.NewFrameBuffer(m.frameTTL),
		lastSeen: m.now(),
	}
	total := len(m.sessions)
	m.mu.Unlock()

	log.Printf("Session created: %s (active: %d)", id, total)
	return s
}

// Get returns the session and refreshes its idle timer.
func (m *Manager) Get(id uuid.UUID) (*orchestrator.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = m.now()
	return e.session, nil
}

// MarkCameraReady attaches the session's frame buffer as its capture source.
func (m *Manager) MarkCameraReady(id uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	e.lastSeen = m.now()
	attach := !e.ready
	e.ready = true
	m.mu.Unlock()

	if attach {
		e.session.AttachCapture(e.frames)
	}
	return nil
}

// PushFrame stores the latest camera frame for the session.
func (m *Manager) PushFrame(id uuid.UUID, frame []byte) error {
	if err := m.MarkCameraReady(id); err != nil {
		return err
	}

	m.mu.Lock()
	e := m.sessions[id]
	m.mu.Unlock()
	if e == nil {
		return ErrNotFound
	}
	e.frames.Push(frame)
	return nil
}

func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than idleTTL. Sessions with a send in
// progress are kept.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for id, e := range m.sessions {
		if e.session.Loading() {
			continue
		}
		if now.Sub(e.lastSeen) > m.idleTTL {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Start runs Sweep on the cron schedule spec (e.g. "@every 1m") until ctx is
// done or Stop is called.
func (m *Manager) Start(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, m.sweepAndLog); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.stopChan:
		}
		<-c.Stop().Done()
	}()
	return nil
}

func (m *Manager) sweepAndLog() {
	if n := m.Sweep(); n > 0 {
		log.Printf("Session sweeper: expired %d idle sessions", n)
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}
