package notesmqtt

import (
	"testing"

	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/logger"
)

type stubMessage struct {
	payload []byte
}

func (m *stubMessage) Duplicate() bool   { return false }
func (m *stubMessage) Qos() byte         { return 0 }
func (m *stubMessage) Retained() bool    { return false }
func (m *stubMessage) Topic() string     { return "drums/notes" }
func (m *stubMessage) MessageID() uint16 { return 1 }
func (m *stubMessage) Payload() []byte   { return m.payload }
func (m *stubMessage) Ack()              {}

func newTestClient(t *testing.T, handler NoteHandler) *Client {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "panic"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewClient(log, config.MQTTConf{Topic: "drums/notes"}, handler)
}

func TestMessageHandlerDecodesStrike(t *testing.T) {
	var gotNote, gotVelocity uint8
	calls := 0
	c := newTestClient(t, func(note, velocity uint8) {
		gotNote, gotVelocity = note, velocity
		calls++
	})

	c.messageHandler(nil, &stubMessage{payload: []byte(`{"note": 36, "velocity": 127}`)})

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if gotNote != 36 || gotVelocity != 127 {
		t.Errorf("decoded strike = (%d, %d), want (36, 127)", gotNote, gotVelocity)
	}
}

func TestMessageHandlerRejectsBadPayloads(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(note, velocity uint8) { calls++ })

	bad := []string{
		`not json`,
		`{"note": 200, "velocity": 10}`,
		`{"note": 36, "velocity": 300}`,
		`{"note": -1, "velocity": 10}`,
	}
	for _, payload := range bad {
		c.messageHandler(nil, &stubMessage{payload: []byte(payload)})
	}

	if calls != 0 {
		t.Errorf("handler calls = %d, want 0 for bad payloads", calls)
	}
}
