package dmx

import "github.com/IronBasement/drum-lights/internal/colors"

const (
	// UniverseSize is the full DMX512 addressable universe.
	UniverseSize = 512

	// StartCode precedes the channel data in every frame.
	StartCode = 0x00

	// MasterDimmer is the buffer slot for the rig-wide dimmer.
	MasterDimmer = 0

	// ChannelsPerFixture is the R,G,B block width of one light.
	ChannelsPerFixture = 3

	// MaxFixtures is the largest rig one universe can hold after the
	// master dimmer slot.
	MaxFixtures = (UniverseSize - 1) / ChannelsPerFixture
)

// Universe wraps the 512 byte channel buffer. Slot 0 is the master
// dimmer; fixture n occupies slots 1+3n..3+3n. Slots past the rig stay
// zero for the life of the process.
type Universe [UniverseSize]byte

// SetMaster sets the master dimmer value.
func (u *Universe) SetMaster(v byte) {
	u[MasterDimmer] = v
}

// SetFixture writes the RGB block of fixture n.
func (u *Universe) SetFixture(n int, c colors.RGB) {
	base := 1 + n*ChannelsPerFixture
	u[base] = c.R
	u[base+1] = c.G
	u[base+2] = c.B
}

// Fixture reads back the RGB block of fixture n.
func (u Universe) Fixture(n int) colors.RGB {
	base := 1 + n*ChannelsPerFixture
	return colors.RGB{R: u[base], G: u[base+1], B: u[base+2]}
}

// Frame renders the wire form: start code followed by every channel in
// ascending order.
func (u Universe) Frame() []byte {
	frame := make([]byte, 1+UniverseSize)
	frame[0] = StartCode
	copy(frame[1:], u[:])
	return frame
}
