package live

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/stream"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
)

type fakeSurface struct {
	id   string
	gone chan struct{}
	once sync.Once
}

func newFakeSurface(id string) *fakeSurface {
	return &fakeSurface{id: id, gone: make(chan struct{})}
}

func (s *fakeSurface) ID() string            { return s.id }
func (s *fakeSurface) Gone() <-chan struct{} { return s.gone }
func (s *fakeSurface) vanish()               { s.once.Do(func() { close(s.gone) }) }

type fakeCapture struct {
	frames  chan audio.Frame
	lost    chan struct{}
	stops   atomic.Int64
	once    sync.Once
	stopped atomic.Bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{frames: make(chan audio.Frame, 16), lost: make(chan struct{})}
}

func (c *fakeCapture) Frames() <-chan audio.Frame { return c.frames }
func (c *fakeCapture) Lost() <-chan struct{}      { return c.lost }
func (c *fakeCapture) Err() error                 { return audio.ErrSourcesEnded }
func (c *fakeCapture) Stop() error {
	c.stops.Add(1)
	c.once.Do(func() {
		c.stopped.Store(true)
		close(c.frames)
	})
	return nil
}

type fakeOpener struct {
	mu       sync.Mutex
	opens    int
	err      error
	captures []*fakeCapture
}

func (o *fakeOpener) Open(_ context.Context, _ Surface) (Capture, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	c := newFakeCapture()
	o.captures = append(o.captures, c)
	return c, nil
}

func (o *fakeOpener) last() *fakeCapture {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.captures[len(o.captures)-1]
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type fakeConn struct {
	done     chan struct{}
	once     sync.Once
	closedAt atomic.Int64
}

func (c *fakeConn) Send([]byte) error     { return nil }
func (c *fakeConn) Done() <-chan struct{} { return c.done }
func (c *fakeConn) Err() error            { return nil }
func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.closedAt.Store(time.Now().UnixNano())
		close(c.done)
	})
	return nil
}

func (c *fakeConn) isClosed() bool { return c.closedAt.Load() != 0 }

type fakeDialer struct {
	name  string
	err   error
	mu    sync.Mutex
	dials int
	conns []*fakeConn
	emit  func(stream.Event)
}

func (d *fakeDialer) Name() string { return d.name }

func (d *fakeDialer) Dial(_ context.Context, emit func(stream.Event)) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{done: make(chan struct{})}
	d.conns = append(d.conns, c)
	d.emit = emit
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

// say publishes one complete turn through the stt adapter.
func (d *fakeDialer) say(speaker int, text string) {
	d.mu.Lock()
	emit := d.emit
	d.mu.Unlock()
	emit(stream.Event{Transcript: &stream.TranscriptEvent{SpeakerID: speaker, Text: text, Final: true, EndOfTurn: true}})
}

type fakeSuggester struct {
	provider string
	result   suggest.Result
	err      error
	// gate, when set, blocks Run until closed.
	gate    chan struct{}
	started chan struct{}

	mu   sync.Mutex
	reqs []suggest.Request
}

func (f *fakeSuggester) Provider() string { return f.provider }

func (f *fakeSuggester) Run(ctx context.Context, req suggest.Request) (suggest.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.result, f.err
}

func (f *fakeSuggester) requests() []suggest.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]suggest.Request(nil), f.reqs...)
}

type fakeSummarizer struct {
	err   error
	delay time.Duration
	calls atomic.Int64
	// captureStopped records whether capture had stopped when Summarize ran.
	captureStopped atomic.Bool
	capture        func() *fakeCapture
	req            summary.Request
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summary.Request) (*summary.Summary, error) {
	f.calls.Add(1)
	f.req = req
	if f.capture != nil {
		f.captureStopped.Store(f.capture().stopped.Load())
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &summary.Summary{Overview: "Discussed pricing.", KeyPoints: []string{"Annual plan"}, ActionItems: []string{}}, nil
}

type fakeSettings struct {
	mu    sync.Mutex
	vals  map[string]string
	err   error
	reads [][]string
}

func (f *fakeSettings) Read(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, keys)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := f.vals[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

type fakePersister struct {
	delay  time.Duration
	err    error
	calls  atomic.Int64
	doneAt atomic.Int64

	mu  sync.Mutex
	rec Record
	dst string
}

func (f *fakePersister) Save(ctx context.Context, destination string, rec Record) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.rec, f.dst = rec, destination
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.doneAt.Store(time.Now().UnixNano())
	if f.err != nil {
		return "", f.err
	}
	return destination + "/" + rec.SessionID, nil
}

type recordPresenter struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordPresenter) Present(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordPresenter) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *recordPresenter) count(eventType string) int {
	n := 0
	for _, e := range p.snapshot() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// terminal returns the summary, summary-error and hidden events, in order.
func (p *recordPresenter) terminal() []Event {
	var out []Event
	for _, e := range p.snapshot() {
		switch e.(type) {
		case *SummaryEvent, *SummaryErrorEvent, *HiddenEvent:
			out = append(out, e)
		}
	}
	return out
}

func (p *recordPresenter) utterances() int {
	n := 0
	for _, e := range p.snapshot() {
		if u, ok := e.(*TranscriptUpdateEvent); ok && u.Utterance != nil {
			n++
		}
	}
	return n
}

type fakeObligations struct {
	held     atomic.Int64
	released atomic.Int64
}

func (f *fakeObligations) Hold(string) func() {
	f.held.Add(1)
	var once sync.Once
	return func() { once.Do(func() { f.released.Add(1) }) }
}

type harness struct {
	o          *Orchestrator
	opener     *fakeOpener
	stt        *fakeDialer
	emotion    *fakeDialer
	suggester  *fakeSuggester
	summarizer *fakeSummarizer
	settings   *fakeSettings
	persister  *fakePersister
	presenter  *recordPresenter
	creds      CredentialMap
	oblig      *fakeObligations
}

func allCredentials() CredentialMap {
	return CredentialMap{
		CredentialSTT:        "dg-key",
		CredentialEmotion:    "hume-key",
		CredentialCompletion: "gemini-key",
		CredentialSummary:    "gemini-key",
	}
}

func newHarness(t *testing.T, mutate func(*harness)) *harness {
	t.Helper()
	settings := &fakeSettings{vals: map[string]string{
		KeySpeakerFilter:      "false",
		KeySummaryEnabled:     "true",
		KeyPersistEnabled:     "true",
		KeyKeyMoments:         "false",
		KeyPersistDestination: "mem://transcripts",
	}}
	h := &harness{
		opener:     &fakeOpener{},
		stt:        &fakeDialer{name: "deepgram"},
		emotion:    &fakeDialer{name: "hume"},
		suggester:  &fakeSuggester{provider: "gemini", result: suggest.Silent()},
		summarizer: &fakeSummarizer{},
		settings:   settings,
		persister:  &fakePersister{},
		presenter:  &recordPresenter{},
		creds:      allCredentials(),
		oblig:      &fakeObligations{},
	}
	if mutate != nil {
		mutate(h)
	}
	var ids atomic.Int64
	o, err := NewOrchestrator(Config{
		Policy: stream.ReconnectPolicy{InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 5 * time.Millisecond, MaxAttempts: 2},
	}, Dependencies{
		Capture:     h.opener,
		STT:         h.stt,
		Emotion:     h.emotion,
		Suggester:   h.suggester,
		Summarizer:  h.summarizer,
		Settings:    h.settings,
		Persister:   h.persister,
		Presenter:   h.presenter,
		Credentials: h.creds,
		Obligations: h.oblig,
		NewID:       func() string { return "id-" + strconv.FormatInt(ids.Add(1), 10) },
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	h.o = o
	h.summarizer.capture = h.opener.last
	return h
}

func (h *harness) start(t *testing.T, s Surface) string {
	t.Helper()
	id, err := h.o.Start(context.Background(), s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return id
}

// speak sends n complete turns, alternating speakers 0 and 1, and waits for
// the loop to record them.
func (h *harness) speak(t *testing.T, n int) {
	t.Helper()
	before := h.presenter.utterances()
	for i := 0; i < n; i++ {
		h.stt.say(i%2, "Turn number "+strconv.Itoa(i)+".")
	}
	waitFor(t, func() bool { return h.presenter.utterances() >= before+n })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var errProvider = errors.New("provider unavailable")

func interimEvent(speaker int, text string) stream.Event {
	return stream.Event{Transcript: &stream.TranscriptEvent{SpeakerID: speaker, Text: text}}
}
