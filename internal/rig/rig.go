// Package rig holds the static note-to-light mapping table.
package rig

import (
	"fmt"

	"github.com/IronBasement/drum-lights/internal/colors"
	"github.com/IronBasement/drum-lights/internal/config"
)

// Light associates a named light with its trigger notes and base color.
// The table is built once at startup and never mutated.
type Light struct {
	Name  string
	Notes map[uint8]struct{}
	Color colors.RGB
}

// Table is the ordered mapping table. Order matters: when trigger sets
// overlap the first match wins, which is a configuration mistake rather
// than something to resolve at runtime.
type Table []Light

// ParseError reports a color spec that fell back to the default.
type ParseError struct {
	Light string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rig: light %q: %v", e.Light, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewTable builds the table from config. Unparseable color specs do not
// fail the load; the affected lights come back white and the problems are
// returned for logging.
func NewTable(lights []config.LightConf) (Table, []*ParseError) {
	var warnings []*ParseError
	table := make(Table, 0, len(lights))
	for _, lc := range lights {
		c, err := colors.Parse(lc.Color)
		if err != nil {
			warnings = append(warnings, &ParseError{Light: lc.Name, Err: err})
		}
		notes := make(map[uint8]struct{}, len(lc.Notes))
		for _, n := range lc.Notes {
			if n < 0 || n > 127 {
				warnings = append(warnings, &ParseError{
					Light: lc.Name,
					Err:   fmt.Errorf("note %d outside MIDI range", n),
				})
				continue
			}
			notes[uint8(n)] = struct{}{}
		}
		table = append(table, Light{Name: lc.Name, Notes: notes, Color: c})
	}
	return table, warnings
}

// FindByNote returns the first light triggered by note, or nil. Most
// notes trigger nothing; a miss is not an error.
func (t Table) FindByNote(note uint8) *Light {
	for i := range t {
		if _, ok := t[i].Notes[note]; ok {
			return &t[i]
		}
	}
	return nil
}
