package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// maxFixtures is what fits in one 512-channel DMX universe after the
// master dimmer slot, at three channels per fixture.
const maxFixtures = 170

// Config is the full configuration file, read once at startup.
type Config struct {
	Logger LogConf
	Output OutputConf
	Engine EngineConf
	Lights []LightConf `toml:"light"`
	MIDI   MIDIConf
	MQTT   MQTTConf
}

// LogConf configures the logger.
type LogConf struct {
	Level string `toml:"log-level"`
}

// OutputConf selects and configures the frame output backend.
type OutputConf struct {
	Backend string `toml:"backend"` // "serial" or "artnet"
	Device  string `toml:"device"`  // serial device path, e.g. /dev/ttyUSB0
	// Break and mark-after-break margins in microseconds. The DMX512
	// minimums are 88 and 8; the defaults leave headroom for cheap
	// receivers.
	BreakMicros int `toml:"break-us"`
	MABMicros   int `toml:"mab-us"`
}

// EngineConf holds the animation and transmission timing.
type EngineConf struct {
	Fixtures     int `toml:"fixtures"`
	FadeMillis   int `toml:"fade-ms"`
	AnimateTick  int `toml:"animate-tick-ms"`
	TransmitTick int `toml:"transmit-tick-ms"`
}

// LightConf maps a named light to its trigger notes and base color.
type LightConf struct {
	Name  string `toml:"name"`
	Notes []int  `toml:"notes"`
	Color string `toml:"color"` // "#RRGGBB" or "rgb(r, g, b)"
}

// MIDIConf configures the local MIDI note source.
type MIDIConf struct {
	Enabled bool   `toml:"enabled"`
	Port    string `toml:"port"` // substring match on the input port name
}

// MQTTConf configures the remote note source.
type MQTTConf struct {
	Enabled  bool   `toml:"enabled"`
	ClientID string `toml:"clientID"`
	Host     string `toml:"server"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Topic    string `toml:"topic"`
}

// NewConfig reads and decodes the TOML file at path.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Config{
		Logger: LogConf{Level: "info"},
		Output: OutputConf{
			Backend:     "serial",
			BreakMicros: 200,
			MABMicros:   100,
		},
		Engine: EngineConf{
			Fixtures:     4,
			FadeMillis:   400,
			AnimateTick:  16,
			TransmitTick: 40,
		},
		MQTT: MQTTConf{Topic: "drums/notes"},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	if err := cfg.validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Output.Backend {
	case "serial", "artnet":
	default:
		return fmt.Errorf("config: unknown output backend %q", c.Output.Backend)
	}
	if c.Engine.Fixtures < 1 || c.Engine.Fixtures > maxFixtures {
		return fmt.Errorf("config: fixtures must be in 1..%d, got %d", maxFixtures, c.Engine.Fixtures)
	}
	if c.Engine.FadeMillis <= 0 || c.Engine.AnimateTick <= 0 || c.Engine.TransmitTick <= 0 {
		return fmt.Errorf("config: fade-ms, animate-tick-ms and transmit-tick-ms must be positive")
	}
	return nil
}
