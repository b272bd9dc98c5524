package dmx

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/IronBasement/drum-lights/internal/logger"
)

// DMX512 line parameters. Fixed by the standard, not per-rig config.
const (
	baudRate = 250000
	dataBits = 8
)

// Minimum break and mark-after-break durations from the standard.
// Configured margins must not go below these.
const (
	minBreak = 88 * time.Microsecond
	minMAB   = 8 * time.Microsecond
)

// breakWriter is the slice of serial.Port the sender needs. Tests
// substitute a recording fake.
type breakWriter interface {
	Break(d time.Duration) error
	Write(p []byte) (n int, err error)
	Close() error
}

// SerialSender drives a DMX512 rig through a USB-serial adapter. Each
// Send holds the line in break, releases it for the mark-after-break,
// then writes start code plus channel data at 250 kbaud 8N2.
type SerialSender struct {
	log      logger.Logger
	device   string
	breakDur time.Duration
	mabDur   time.Duration

	// ioMu keeps one frame on the line at a time; mu guards the port
	// pointer. Close takes only mu, so a wedged write cannot hold up
	// shutdown.
	ioMu sync.Mutex
	mu   sync.Mutex
	port breakWriter
}

// NewSerialSender prepares a sender for the given device path. Break and
// mark-after-break margins are in microseconds; values below the DMX512
// minimums are raised to them.
func NewSerialSender(log logger.Logger, device string, breakMicros, mabMicros int) *SerialSender {
	breakDur := time.Duration(breakMicros) * time.Microsecond
	if breakDur < minBreak {
		breakDur = minBreak
	}
	mabDur := time.Duration(mabMicros) * time.Microsecond
	if mabDur < minMAB {
		mabDur = minMAB
	}
	return &SerialSender{
		log:      log,
		device:   device,
		breakDur: breakDur,
		mabDur:   mabDur,
	}
}

// Connect opens the serial device with DMX line parameters.
func (s *SerialSender) Connect() error {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: dataBits,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	port, err := serial.Open(s.device, mode)
	if err != nil {
		return fmt.Errorf("dmx: open %s: %w", s.device, err)
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	s.log.With(logger.Fields{"module": "dmx"}).Infof("serial port %s open at %d baud", s.device, baudRate)
	return nil
}

func (s *SerialSender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// Send emits one frame. A time.Sleep carries the mark-after-break; the
// scheduler may stretch it well past the configured margin, which the
// standard allows (the MAB has a minimum, not a maximum).
func (s *SerialSender) Send(u Universe) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return fmt.Errorf("dmx: serial port not open")
	}

	if err := port.Break(s.breakDur); err != nil {
		return fmt.Errorf("dmx: break: %w", err)
	}
	time.Sleep(s.mabDur)

	if _, err := port.Write(u.Frame()); err != nil {
		return fmt.Errorf("dmx: write frame: %w", err)
	}
	return nil
}

func (s *SerialSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
