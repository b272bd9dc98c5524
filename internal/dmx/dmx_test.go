package dmx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IronBasement/drum-lights/internal/colors"
	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/logger"
)

type stubSender struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	started   chan struct{}
	block     chan struct{}
	frames    []Universe
}

func (s *stubSender) Connect() error { return nil }

func (s *stubSender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubSender) Send(u Universe) error {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, u)
	return s.sendErr
}

func (s *stubSender) Close() error { return nil }

func (s *stubSender) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func testLog(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "panic"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestUniverseLayout(t *testing.T) {
	var u Universe
	u.SetMaster(255)
	u.SetFixture(0, colors.RGB{R: 1, G: 2, B: 3})
	u.SetFixture(2, colors.RGB{R: 7, G: 8, B: 9})

	if u[0] != 255 {
		t.Errorf("master dimmer = %d, want 255", u[0])
	}
	if u[1] != 1 || u[2] != 2 || u[3] != 3 {
		t.Errorf("fixture 0 block = %v, want [1 2 3]", u[1:4])
	}
	// Fixture 1 untouched, fixture 2 at its stride-3 slot.
	if u[4] != 0 || u[5] != 0 || u[6] != 0 {
		t.Errorf("fixture 1 block = %v, want zeros", u[4:7])
	}
	if u[7] != 7 || u[8] != 8 || u[9] != 9 {
		t.Errorf("fixture 2 block = %v, want [7 8 9]", u[7:10])
	}
	if got := u.Fixture(2); got != (colors.RGB{R: 7, G: 8, B: 9}) {
		t.Errorf("Fixture(2) = %v, want {7 8 9}", got)
	}
}

func TestFrameWireFormat(t *testing.T) {
	var u Universe
	u.SetMaster(200)
	u.SetFixture(0, colors.RGB{R: 10, G: 20, B: 30})

	frame := u.Frame()
	if len(frame) != 1+UniverseSize {
		t.Fatalf("frame length = %d, want %d", len(frame), 1+UniverseSize)
	}
	if frame[0] != StartCode {
		t.Errorf("start code = %#x, want %#x", frame[0], StartCode)
	}
	if frame[1] != 200 {
		t.Errorf("channel 0 on wire = %d, want 200", frame[1])
	}
	if frame[2] != 10 || frame[3] != 20 || frame[4] != 30 {
		t.Errorf("fixture 0 on wire = %v, want [10 20 30]", frame[2:5])
	}
	for i := 5; i < len(frame); i++ {
		if frame[i] != 0 {
			t.Fatalf("wire byte %d = %d, want 0", i, frame[i])
		}
	}
}

func TestTickSkipsWhileDisconnected(t *testing.T) {
	sender := &stubSender{connected: false}
	tx := NewTransmitter(testLog(t), sender, 40*time.Millisecond)

	tx.tick()
	tx.tick()
	if n := sender.frameCount(); n != 0 {
		t.Errorf("frames = %d, want 0 while disconnected", n)
	}

	sender.mu.Lock()
	sender.connected = true
	sender.mu.Unlock()

	tx.tick()
	if n := sender.frameCount(); n != 1 {
		t.Errorf("frames = %d, want 1 after reconnect", n)
	}
}

func TestTickSurvivesSendError(t *testing.T) {
	sender := &stubSender{connected: true, sendErr: errors.New("yanked cable")}
	tx := NewTransmitter(testLog(t), sender, 40*time.Millisecond)

	// Each tick is independent best-effort; errors are logged, not fatal.
	tx.tick()
	tx.tick()
	if n := sender.frameCount(); n != 2 {
		t.Errorf("send attempts = %d, want 2", n)
	}
}

func TestTickSendsCurrentBuffer(t *testing.T) {
	sender := &stubSender{connected: true}
	tx := NewTransmitter(testLog(t), sender, 40*time.Millisecond)

	var u Universe
	u.SetMaster(255)
	u.SetFixture(1, colors.RGB{R: 40, G: 50, B: 60})
	tx.SetUniverse(u)

	tx.tick()
	sender.mu.Lock()
	got := sender.frames[0]
	sender.mu.Unlock()
	if got != u {
		t.Error("transmitted frame does not match the buffer")
	}
}

func TestSendNowTimesOutOnWedgedLink(t *testing.T) {
	sender := &stubSender{connected: true, block: make(chan struct{})}
	tx := NewTransmitter(testLog(t), sender, 40*time.Millisecond)

	start := time.Now()
	err := tx.SendNow(Universe{}, 50*time.Millisecond)
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("SendNow error = %v, want ErrSendTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendNow blocked %v, want prompt timeout", elapsed)
	}
	close(sender.block)
}

func TestSendNowNoopWhenDisconnected(t *testing.T) {
	sender := &stubSender{connected: false}
	tx := NewTransmitter(testLog(t), sender, 40*time.Millisecond)

	if err := tx.SendNow(Universe{}, 50*time.Millisecond); err != nil {
		t.Errorf("SendNow = %v, want nil while disconnected", err)
	}
	if n := sender.frameCount(); n != 0 {
		t.Errorf("frames = %d, want 0", n)
	}
}

func TestSnapshotReadsChain(t *testing.T) {
	tx := NewTransmitter(testLog(t), &stubSender{}, 40*time.Millisecond)

	var u Universe
	u.SetFixture(0, colors.RGB{R: 9, G: 9, B: 9})
	tx.SetUniverse(u)

	if got := tx.Snapshot().Fixture(0); got != (colors.RGB{R: 9, G: 9, B: 9}) {
		t.Errorf("Snapshot().Fixture(0) = %v, want {9 9 9}", got)
	}
}

func TestJoinReturnsAfterRunExits(t *testing.T) {
	tx := NewTransmitter(testLog(t), &stubSender{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	tx.Start(ctx)
	cancel()

	if !tx.Join(time.Second) {
		t.Error("transmission loop did not exit after cancel")
	}
}

func TestJoinWithoutStart(t *testing.T) {
	tx := NewTransmitter(testLog(t), &stubSender{}, time.Millisecond)
	if !tx.Join(time.Millisecond) {
		t.Error("Join must return immediately when the loop never ran")
	}
}

func TestJoinOutwaitsInFlightSend(t *testing.T) {
	sender := &stubSender{
		connected: true,
		started:   make(chan struct{}, 1),
		block:     make(chan struct{}),
	}
	tx := NewTransmitter(testLog(t), sender, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	tx.Start(ctx)

	// Wait until a tick is mid-send, then cancel. Join must not report
	// done while that send is still on the wire.
	select {
	case <-sender.started:
	case <-time.After(time.Second):
		t.Fatal("no send started")
	}
	cancel()

	if tx.Join(30 * time.Millisecond) {
		t.Error("Join reported done with a send still in flight")
	}

	close(sender.block)
	if !tx.Join(time.Second) {
		t.Error("transmission loop did not exit after the send finished")
	}
}

type portOp struct {
	kind string // "break", "write", "close"
	dur  time.Duration
	data []byte
	at   time.Time
}

// fakePort records the line-level call sequence.
type fakePort struct {
	mu  sync.Mutex
	ops []portOp
}

func (p *fakePort) Break(d time.Duration) error {
	p.record(portOp{kind: "break", dur: d, at: time.Now()})
	return nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	data := make([]byte, len(b))
	copy(data, b)
	p.record(portOp{kind: "write", data: data, at: time.Now()})
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.record(portOp{kind: "close", at: time.Now()})
	return nil
}

func (p *fakePort) record(op portOp) {
	p.mu.Lock()
	p.ops = append(p.ops, op)
	p.mu.Unlock()
}

func (p *fakePort) recorded() []portOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]portOp(nil), p.ops...)
}

func newSerialWithFakePort(t *testing.T) (*SerialSender, *fakePort) {
	t.Helper()
	s := NewSerialSender(testLog(t), "fake", 200, 100)
	port := &fakePort{}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	return s, port
}

func TestSerialFrameSequence(t *testing.T) {
	s, port := newSerialWithFakePort(t)

	var u Universe
	u.SetMaster(255)
	u.SetFixture(0, colors.RGB{R: 10, G: 20, B: 30})
	if err := s.Send(u); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ops := port.recorded()
	if len(ops) != 2 || ops[0].kind != "break" || ops[1].kind != "write" {
		t.Fatalf("port ops = %v, want break then write", ops)
	}
	if ops[0].dur != s.breakDur {
		t.Errorf("break duration = %v, want %v", ops[0].dur, s.breakDur)
	}
	// The mark-after-break separates break from data.
	if gap := ops[1].at.Sub(ops[0].at); gap < s.mabDur {
		t.Errorf("mark-after-break gap = %v, want at least %v", gap, s.mabDur)
	}

	frame := ops[1].data
	if len(frame) != 1+UniverseSize {
		t.Fatalf("frame length = %d, want %d", len(frame), 1+UniverseSize)
	}
	if frame[0] != StartCode {
		t.Errorf("start code = %#x, want %#x", frame[0], StartCode)
	}
	if frame[1] != 255 || frame[2] != 10 || frame[3] != 20 || frame[4] != 30 {
		t.Errorf("frame head = %v, want [255 10 20 30]", frame[1:5])
	}
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	s, port := newSerialWithFakePort(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := s.Send(Universe{}); err != nil {
					t.Errorf("Send: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	ops := port.recorded()
	if len(ops) != 40 {
		t.Fatalf("port ops = %d, want 40", len(ops))
	}
	for i, op := range ops {
		want := "break"
		if i%2 == 1 {
			want = "write"
		}
		if op.kind != want {
			t.Fatalf("op %d = %s, want %s (frames interleaved on the line)", i, op.kind, want)
		}
	}
}

func TestSerialSendWithoutOpenPort(t *testing.T) {
	s := NewSerialSender(testLog(t), "fake", 200, 100)
	if s.Connected() {
		t.Error("Connected before open")
	}
	if err := s.Send(Universe{}); err == nil {
		t.Error("Send on a closed port must fail")
	}
}

func TestSerialMarginsRaisedToMinimums(t *testing.T) {
	s := NewSerialSender(testLog(t), "/dev/null", 1, 0)
	if s.breakDur < minBreak {
		t.Errorf("break duration %v below DMX minimum %v", s.breakDur, minBreak)
	}
	if s.mabDur < minMAB {
		t.Errorf("mark-after-break %v below DMX minimum %v", s.mabDur, minMAB)
	}
}
