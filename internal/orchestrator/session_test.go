package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

// scriptedCapture returns frames[i] on the i-th call and nil once exhausted.
type scriptedCapture struct {
	mu     sync.Mutex
	frames [][]byte
	calls  int
}

func (c *scriptedCapture) CaptureFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.frames) {
		return c.frames[i]
	}
	return nil
}

type replyCall struct {
	message string
	emotion models.Emotion
	convLen int
}

type stubReplies struct {
	mu       sync.Mutex
	calls    []replyCall
	conv     func() int
	errFor   map[models.Emotion]error
	block    chan struct{}
	returned chan struct{}
}

func (r *stubReplies) GetReply(ctx context.Context, message string, emotion models.Emotion) (string, error) {
	r.mu.Lock()
	call := replyCall{message: message, emotion: emotion}
	if r.conv != nil {
		call.convLen = r.conv()
	}
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.block != nil && emotion == models.EmotionNone {
		<-r.block
	}
	if r.returned != nil && emotion == models.EmotionNone {
		defer close(r.returned)
	}
	if err := r.errFor[emotion]; err != nil {
		return "", err
	}
	if emotion == models.EmotionNone {
		return "baseline: " + message, nil
	}
	return "enriched(" + string(emotion) + "): " + message, nil
}

func (r *stubReplies) snapshot() []replyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]replyCall(nil), r.calls...)
}

type stubAnalyzer struct {
	mu      sync.Mutex
	label   models.Emotion
	err     error
	calls   int
	waitFor chan struct{}
}

func (a *stubAnalyzer) AnalyzeImage(ctx context.Context, image []byte) (models.Emotion, error) {
	if a.waitFor != nil {
		<-a.waitFor
	}
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.label, a.err
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	states []State
	msgs   []models.ChatMessage
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *recordingObserver) MessageAppended(m models.ChatMessage) {
	o.mu.Lock()
	o.msgs = append(o.msgs, m)
	o.mu.Unlock()
}

func newTestSession(replies *stubReplies, analyzer *stubAnalyzer, capture CaptureSource) (*Session, *sleepRecorder) {
	sleeper := &sleepRecorder{}
	opts := []Option{WithSleep(sleeper.sleep)}
	if capture != nil {
		opts = append(opts, WithCaptureSource(capture))
	}
	s := NewSession(uuid.New(), replies, analyzer, DefaultConfig(), opts...)
	replies.conv = s.Conversation().Len
	return s, sleeper
}

func assertTranscript(t *testing.T, s *Session, want ...models.ChatMessage) {
	t.Helper()
	got := s.Conversation().Messages()
	if len(got) != len(want) {
		t.Fatalf("expected %d turns, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSendMessage_UserTurnPrecedesRemoteCalls(t *testing.T) {
	replies := &stubReplies{}
	s, _ := newTestSession(replies, &stubAnalyzer{label: models.EmotionSad}, &scriptedCapture{frames: [][]byte{[]byte("img")}})

	if _, err := s.SendMessage(context.Background(), "  I miss home  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, c := range replies.snapshot() {
		if c.convLen < 1 {
			t.Fatalf("reply call %d started before the user turn was appended", i)
		}
		if c.message != "I miss home" {
			t.Fatalf("expected trimmed message, got %q", c.message)
		}
	}
	if first := s.Conversation().Messages()[0]; first.Role != models.RoleUser || first.Content != "I miss home" {
		t.Fatalf("unexpected first turn: %+v", first)
	}
}

func TestSendMessage_NoFrameUsesBaseline(t *testing.T) {
	replies := &stubReplies{}
	analyzer := &stubAnalyzer{label: models.EmotionHappy}
	capture := &scriptedCapture{}
	s, sleeper := newTestSession(replies, analyzer, capture)

	msg, err := s.SendMessage(context.Background(), "I feel overwhelmed today")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertTranscript(t, s,
		models.ChatMessage{Role: models.RoleUser, Content: "I feel overwhelmed today"},
		models.ChatMessage{Role: models.RoleModel, Content: "baseline: I feel overwhelmed today"},
	)
	if msg.Content != "baseline: I feel overwhelmed today" {
		t.Fatalf("unexpected returned message: %+v", msg)
	}
	if analyzer.calls != 0 {
		t.Fatalf("analyzer must not run without a frame, ran %d times", analyzer.calls)
	}
	if capture.calls != 2 {
		t.Fatalf("expected 2 capture attempts, got %d", capture.calls)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 50*time.Millisecond {
		t.Fatalf("expected exactly one 50ms retry delay, got %v", sleeper.delays)
	}
	if n := len(replies.snapshot()); n != 1 {
		t.Fatalf("expected a single baseline request, got %d", n)
	}
}

func TestSendMessage_FrameOnFirstAttemptSkipsRetry(t *testing.T) {
	replies := &stubReplies{}
	analyzer := &stubAnalyzer{label: models.EmotionHappy}
	capture := &scriptedCapture{frames: [][]byte{[]byte("img")}}
	s, sleeper := newTestSession(replies, analyzer, capture)

	if _, err := s.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capture.calls != 1 {
		t.Fatalf("expected a single capture attempt, got %d", capture.calls)
	}
	if len(sleeper.delays) != 0 {
		t.Fatalf("expected no retry delay, got %v", sleeper.delays)
	}
	assertTranscript(t, s,
		models.ChatMessage{Role: models.RoleUser, Content: "hello"},
		models.ChatMessage{Role: models.RoleModel, Content: "enriched(Happy): hello"},
	)
}

func TestSendMessage_FrameOnSecondAttempt(t *testing.T) {
	replies := &stubReplies{}
	analyzer := &stubAnalyzer{label: models.EmotionTired}
	capture := &scriptedCapture{frames: [][]byte{nil, []byte("img")}}
	s, sleeper := newTestSession(replies, analyzer, capture)

	if _, err := s.SendMessage(context.Background(), "long day"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sleeper.delays) != 1 {
		t.Fatalf("expected exactly one retry delay, got %v", sleeper.delays)
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected analysis of the captured frame, got %d calls", analyzer.calls)
	}
	last := s.Conversation().Messages()[1]
	if last.Content != "enriched(Tired): long day" {
		t.Fatalf("expected enriched reply, got %q", last.Content)
	}
}

func TestSendMessage_EnrichedWinsEvenWhenBaselineResolvesFirst(t *testing.T) {
	baselineDone := make(chan struct{})
	replies := &stubReplies{returned: baselineDone}
	analyzer := &stubAnalyzer{label: models.EmotionStressed, waitFor: baselineDone}
	s, _ := newTestSession(replies, analyzer, &scriptedCapture{frames: [][]byte{[]byte("img")}})

	msg, err := s.SendMessage(context.Background(), "deadline tomorrow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Content != "enriched(Stressed): deadline tomorrow" {
		t.Fatalf("expected enriched reply, got %q", msg.Content)
	}
	calls := replies.snapshot()
	if len(calls) != 2 || calls[1].emotion != models.EmotionStressed {
		t.Fatalf("expected baseline then enriched request with Stressed, got %+v", calls)
	}
	if s.Conversation().Len() != 2 {
		t.Fatalf("expected exactly one model turn, transcript has %d turns", s.Conversation().Len())
	}
}

func TestSendMessage_NoLabelFallsBackToBaseline(t *testing.T) {
	replies := &stubReplies{}
	s, _ := newTestSession(replies, &stubAnalyzer{label: models.EmotionNone}, &scriptedCapture{frames: [][]byte{[]byte("img")}})

	msg, err := s.SendMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "baseline: hi" {
		t.Fatalf("expected baseline reply, got %q", msg.Content)
	}
	if n := len(replies.snapshot()); n != 1 {
		t.Fatalf("expected no enrichment request, got %d reply calls", n)
	}
}

func TestSendMessage_AnalyzerFailureDegradesToBaseline(t *testing.T) {
	replies := &stubReplies{}
	analyzer := &stubAnalyzer{err: errors.New("vision quota exceeded")}
	s, _ := newTestSession(replies, analyzer, &scriptedCapture{frames: [][]byte{[]byte("img")}})

	msg, err := s.SendMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("analysis failure must not surface, got %v", err)
	}
	if msg.Content != "baseline: hi" {
		t.Fatalf("expected baseline reply, got %q", msg.Content)
	}
	if s.LastError() != "" {
		t.Fatalf("expected no error banner, got %q", s.LastError())
	}
}

func TestSendMessage_BaselineFailureAppendsApology(t *testing.T) {
	replies := &stubReplies{errFor: map[models.Emotion]error{models.EmotionNone: errors.New("503")}}
	s, _ := newTestSession(replies, &stubAnalyzer{}, &scriptedCapture{})

	_, err := s.SendMessage(context.Background(), "hi")
	if !errors.Is(err, ErrUpstreamReply) {
		t.Fatalf("expected ErrUpstreamReply, got %v", err)
	}

	msgs := s.Conversation().Messages()
	if len(msgs) != 2 || msgs[1].Role != models.RoleModel || !strings.HasPrefix(msgs[1].Content, "Sorry, an error occurred: ") {
		t.Fatalf("expected apology model turn, got %+v", msgs)
	}
	if s.LastError() == "" {
		t.Fatalf("expected error banner to be set")
	}
	if s.Loading() {
		t.Fatalf("expected loading to be cleared")
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle state after failure, got %s", s.State())
	}
}

func TestSendMessage_EnrichmentFailureAppendsApology(t *testing.T) {
	replies := &stubReplies{errFor: map[models.Emotion]error{models.EmotionAngry: errors.New("timeout")}}
	s, _ := newTestSession(replies, &stubAnalyzer{label: models.EmotionAngry}, &scriptedCapture{frames: [][]byte{[]byte("img")}})

	_, err := s.SendMessage(context.Background(), "ugh")
	if !errors.Is(err, ErrUpstreamReply) {
		t.Fatalf("expected ErrUpstreamReply, got %v", err)
	}
	msgs := s.Conversation().Messages()
	if len(msgs) != 2 || !strings.HasPrefix(msgs[1].Content, "Sorry, an error occurred: ") {
		t.Fatalf("expected a single apology turn, got %+v", msgs)
	}
}

func TestSendMessage_CaptureUnavailableIsFatal(t *testing.T) {
	replies := &stubReplies{}
	s, _ := newTestSession(replies, &stubAnalyzer{}, nil)

	_, err := s.SendMessage(context.Background(), "hello")
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if s.Conversation().Len() != 0 {
		t.Fatalf("expected no turns appended, got %d", s.Conversation().Len())
	}
	if len(replies.snapshot()) != 0 {
		t.Fatalf("expected no remote calls")
	}
	if s.LastError() == "" {
		t.Fatalf("expected error banner to be set")
	}
}

func TestSendMessage_EmptyMessageRejected(t *testing.T) {
	replies := &stubReplies{}
	s, _ := newTestSession(replies, &stubAnalyzer{}, &scriptedCapture{})

	if _, err := s.SendMessage(context.Background(), "   \n"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if s.Conversation().Len() != 0 || len(replies.snapshot()) != 0 {
		t.Fatalf("expected nothing to happen for an empty message")
	}
}

func TestSendMessage_SecondSendWhileLoadingIsRejected(t *testing.T) {
	block := make(chan struct{})
	replies := &stubReplies{block: block}
	s, _ := newTestSession(replies, &stubAnalyzer{}, &scriptedCapture{})

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "first")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for !s.Loading() {
		select {
		case <-deadline:
			t.Fatal("first send never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := s.SendMessage(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected reset to be rejected while loading, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if s.Conversation().Len() != 2 {
		t.Fatalf("expected only the first exchange, got %d turns", s.Conversation().Len())
	}
}

func TestSendMessage_ObserverSeesStateMachine(t *testing.T) {
	obs := &recordingObserver{}
	replies := &stubReplies{}
	s, _ := newTestSession(replies, &stubAnalyzer{label: models.EmotionHappy}, &scriptedCapture{frames: [][]byte{[]byte("img")}})
	s.SetObserver(obs)

	if _, err := s.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []State{StateCapturing, StateAwaitingBoth, StateEnriching, StateIdle}
	if len(obs.states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, obs.states)
	}
	for i := range want {
		if obs.states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, obs.states)
		}
	}
	if len(obs.msgs) != 2 || obs.msgs[0].Role != models.RoleUser || obs.msgs[1].Role != models.RoleModel {
		t.Fatalf("expected user then model notifications, got %+v", obs.msgs)
	}
}

func TestReset_ClearsTranscriptAndError(t *testing.T) {
	replies := &stubReplies{errFor: map[models.Emotion]error{models.EmotionNone: errors.New("down")}}
	s, _ := newTestSession(replies, &stubAnalyzer{}, &scriptedCapture{})
	s.SendMessage(context.Background(), "hi")

	if err := s.Reset(); err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if s.Conversation().Len() != 0 || s.LastError() != "" {
		t.Fatalf("expected clean session after reset")
	}
}

// ctxReplies answers once released, or fails as soon as ctx is done.
type ctxReplies struct {
	started chan struct{}
	release chan struct{}
}

func (r *ctxReplies) GetReply(ctx context.Context, message string, emotion models.Emotion) (string, error) {
	close(r.started)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.release:
		return "baseline: " + message, nil
	}
}

func TestSendMessage_CallerCancellationDoesNotAbortSend(t *testing.T) {
	replies := &ctxReplies{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(uuid.New(), replies, &stubAnalyzer{}, DefaultConfig(),
		WithSleep((&sleepRecorder{}).sleep),
		WithCaptureSource(&scriptedCapture{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(ctx, "hello")
		done <- err
	}()

	<-replies.started
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(replies.release)

	if err := <-done; err != nil {
		t.Fatalf("expected send to complete after caller cancellation, got %v", err)
	}
	assertTranscript(t, s,
		models.ChatMessage{Role: models.RoleUser, Content: "hello"},
		models.ChatMessage{Role: models.RoleModel, Content: "baseline: hello"},
	)
	if s.LastError() != "" {
		t.Fatalf("expected no error banner, got %q", s.LastError())
	}
}
