package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrBusy               = errors.New("a message is already being processed")
	ErrCaptureUnavailable = errors.New("camera is not available")
	ErrUpstreamReply      = errors.New("failed to get a response")
)

// replyFailureText is what the user sees in the transcript when a reply
// request fails.
const replyFailureText = "Failed to get a response. Please try again."

// ReplyProvider produces a chat reply. An empty emotion means no emotion context.
type ReplyProvider interface {
	GetReply(ctx context.Context, message string, emotion models.Emotion) (string, error)
}

// EmotionAnalyzer labels the facial expression in a still frame. It returns
// models.EmotionNone when no label could be determined.
type EmotionAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (models.Emotion, error)
}

type Config struct {
	CaptureAttempts   int
	CaptureRetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{CaptureAttempts: 2, CaptureRetryDelay: 50 * time.Millisecond}
}

type Option func(*Session)

// WithSleep replaces the retry delay implementation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) { s.sleep = sleep }
}

func WithCaptureSource(src CaptureSource) Option {
	return func(s *Session) { s.capture = src }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// Session owns one conversation and sends its messages, attaching an emotion
// label from the capture source when one can be obtained quickly.
type Session struct {
	ID uuid.UUID

	conv     *Conversation
	replies  ReplyProvider
	analyzer EmotionAnalyzer
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	capture  CaptureSource
	observer Observer
	state    State
	lastErr  string

	loading atomic.Bool
}

func NewSession(id uuid.UUID, replies ReplyProvider, analyzer EmotionAnalyzer, cfg Config, opts ...Option) *Session {
	if cfg.CaptureAttempts < 1 {
		cfg.CaptureAttempts = 1
	}
	s := &Session{
		ID:       id,
		conv:     NewConversation(),
		replies:  replies,
		analyzer: analyzer,
		cfg:      cfg,
		sleep:    sleepContext,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Conversation() *Conversation { return s.conv }

// AttachCapture marks the capture source as ready.
func (s *Session) AttachCapture(src CaptureSource) {
	s.mu.Lock()
	s.capture = src
	s.mu.Unlock()
}

func (s *Session) SetObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the message of the most recent failed send, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Loading() bool { return s.loading.Load() }

// Reset clears the transcript and the error banner.
func (s *Session) Reset() error {
	if !s.loading.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.loading.Store(false)

	s.conv.Reset()
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

type replyResult struct {
	text string
	err  error
}

// SendMessage appends the user turn, then appends exactly one model turn: the
// emotion-enriched reply when a frame was captured and labelled, the baseline
// reply otherwise, or an apology when a reply request fails.
//
// ErrEmptyMessage, ErrBusy and ErrCaptureUnavailable leave the transcript
// untouched. Once started, a send runs to completion even if ctx is
// cancelled; ctx only carries values through to the providers.
func (s *Session) SendMessage(ctx context.Context, message string) (models.ChatMessage, error) {
	ctx = context.WithoutCancel(ctx)
	message = strings.TrimSpace(message)
	if message == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	if !s.loading.CompareAndSwap(false, true) {
		return models.ChatMessage{}, ErrBusy
	}
	defer func() {
		s.loading.Store(false)
		s.setState(StateIdle)
	}()

	s.mu.Lock()
	src := s.capture
	s.mu.Unlock()
	if src == nil {
		s.setError(ErrCaptureUnavailable.Error())
		return models.ChatMessage{}, ErrCaptureUnavailable
	}

	s.setError("")
	s.appendTurn(models.ChatMessage{Role: models.RoleUser, Content: message})

	baseline := make(chan replyResult, 1)
	go func() {
		text, err := s.replies.GetReply(ctx, message, models.EmotionNone)
		baseline <- replyResult{text: text, err: err}
	}()

	s.setState(StateCapturing)
	frame := s.captureWithRetry(ctx, src)

	if frame == nil {
		s.setState(StateAwaitingBaseline)
		res := <-baseline
		if res.err != nil {
			return s.replyFailed(res.err)
		}
		return s.appendTurn(models.ChatMessage{Role: models.RoleModel, Content: res.text}), nil
	}

	s.setState(StateAwaitingBoth)
	emotion := s.analyze(ctx, frame)
	res := <-baseline
	if res.err != nil {
		return s.replyFailed(res.err)
	}

	if emotion == models.EmotionNone {
		return s.appendTurn(models.ChatMessage{Role: models.RoleModel, Content: res.text}), nil
	}

	s.setState(StateEnriching)
	enriched, err := s.replies.GetReply(ctx, message, emotion)
	if err != nil {
		return s.replyFailed(err)
	}
	return s.appendTurn(models.ChatMessage{Role: models.RoleModel, Content: enriched}), nil
}

// captureWithRetry makes up to CaptureAttempts capture calls, sleeping
// CaptureRetryDelay between them but never after the last one.
func (s *Session) captureWithRetry(ctx context.Context, src CaptureSource) []byte {
	for attempt := 1; attempt <= s.cfg.CaptureAttempts; attempt++ {
		if frame := src.CaptureFrame(); len(frame) > 0 {
			return frame
		}
		if attempt == s.cfg.CaptureAttempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.CaptureRetryDelay); err != nil {
			return nil
		}
	}
	return nil
}

// analyze degrades analyzer failures to "no label".
func (s *Session) analyze(ctx context.Context, frame []byte) models.Emotion {
	if s.analyzer == nil {
		return models.EmotionNone
	}
	emotion, err := s.analyzer.AnalyzeImage(ctx, frame)
	if err != nil {
		log.Printf("session %s: emotion analysis failed, falling back to baseline: %v", s.ID, err)
		return models.EmotionNone
	}
	return emotion
}

func (s *Session) replyFailed(cause error) (models.ChatMessage, error) {
	log.Printf("session %s: reply failed: %v", s.ID, cause)
	s.setError(replyFailureText)
	msg := s.appendTurn(models.ChatMessage{
		Role:    models.RoleModel,
		Content: "Sorry, an error occurred: " + replyFailureText,
	})
	return msg, fmt.Errorf("%w: %v", ErrUpstreamReply, cause)
}

func (s *Session) appendTurn(msg models.ChatMessage) models.ChatMessage {
	s.conv.Append(msg)
	if o := s.currentObserver(); o != nil {
		o.MessageAppended(msg)
	}
	return msg
}

func (s *Session) setError(text string) {
	s.mu.Lock()
	s.lastErr = text
	s.mu.Unlock()
	if text != "" {
		s.setState(StateError)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	o := s.observer
	s.mu.Unlock()
	if o != nil {
		o.StateChanged(state)
	}
}

func (s *Session) currentObserver() Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
