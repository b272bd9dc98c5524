package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/dmx"
	"github.com/IronBasement/drum-lights/internal/engine"
	"github.com/IronBasement/drum-lights/internal/logger"
	"github.com/IronBasement/drum-lights/internal/midiin"
	"github.com/IronBasement/drum-lights/internal/notesmqtt"
	"github.com/IronBasement/drum-lights/internal/rig"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	table, warnings := rig.NewTable(cfg.Lights)
	for _, w := range warnings {
		log.With(logger.Fields{"module": "rig"}).Warnf("mapping config: %v", w)
	}
	if len(table) == 0 {
		log.With(logger.Fields{"module": "rig"}).Warn("no lights configured, every note will be ignored")
	}

	sender, err := newSender(log, cfg.Output)
	if err != nil {
		log.With(logger.Fields{"module": "dmx"}).Errorf("error while creating the output backend: %v", err)
		os.Exit(1)
	}

	tx := dmx.NewTransmitter(log, sender, millis(cfg.Engine.TransmitTick))
	eng := engine.New(log, cfg.Engine, table, tx)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	eng.Start(ctx)

	var midiSource *midiin.Source
	if cfg.MIDI.Enabled {
		midiSource, err = midiin.Start(log, cfg.MIDI, eng.NoteOn)
		if err != nil {
			log.Error("failed to start MIDI source:", err.Error())
			cancel()
		}
	}

	var mqttClient *notesmqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = notesmqtt.NewClient(log, cfg.MQTT, eng.NoteOn)
		if err = mqttClient.Start(ctx); err != nil {
			log.Error("failed to start MQTT source:", err.Error())
			cancel()
		}
	}

	if !cfg.MIDI.Enabled && !cfg.MQTT.Enabled {
		log.Warn("no note sources enabled, the rig will stay dark")
	}

	<-ctx.Done()

	if midiSource != nil {
		midiSource.Close()
	}
	if mqttClient != nil {
		if err := mqttClient.Stop(); err != nil {
			log.Error("failed to stop MQTT source:", err.Error())
		}
	}

	eng.Stop()

	log.Info("shutdown complete")
}

func newSender(log logger.Logger, cfg config.OutputConf) (dmx.Sender, error) {
	switch cfg.Backend {
	case "artnet":
		return dmx.NewArtNetSender(log)
	default:
		return dmx.NewSerialSender(log, cfg.Device, cfg.BreakMicros, cfg.MABMicros), nil
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
