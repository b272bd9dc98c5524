// Package midiin feeds drum strikes from a local MIDI input port into
// the engine.
package midiin

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver

	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/logger"
)

// NoteHandler receives one call per note strike. It must not block; the
// engine side only appends to its registry.
type NoteHandler func(note, velocity uint8)

// Source is an open MIDI input subscription.
type Source struct {
	log  logger.Logger
	port string
	stop func()
}

// Start opens the configured input port and listens for note-on
// messages. The port name is matched the way the driver matches it,
// typically by substring.
func Start(log logger.Logger, cfg config.MIDIConf, handler NoteHandler) (*Source, error) {
	in, err := gomidi.FindInPort(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("midiin: no input port matching %q: %w", cfg.Port, err)
	}

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		var channel, note, velocity uint8
		if msg.GetNoteOn(&channel, &note, &velocity) {
			handler(note, velocity)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("midiin: listen on %q: %w", in.String(), err)
	}

	log.With(logger.Fields{"module": "midi"}).Infof("listening on input port %q", in.String())

	return &Source{log: log, port: in.String(), stop: stop}, nil
}

// Close stops the listener. Safe to call more than once.
func (s *Source) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
		s.log.With(logger.Fields{"module": "midi"}).Infof("closed input port %q", s.port)
	}
}
