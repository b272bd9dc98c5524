// Package notesmqtt feeds drum strikes delivered over MQTT into the
// engine. It is the remote counterpart of the local MIDI source.
package notesmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/logger"
)

// NoteHandler receives one call per decoded note strike.
type NoteHandler func(note, velocity uint8)

// notePayload is the wire form of one strike.
type notePayload struct {
	Note     int `json:"note"`
	Velocity int `json:"velocity"`
}

// Client subscribes to the note topic on the configured broker.
type Client struct {
	ctx     context.Context
	log     logger.Logger
	cfg     config.MQTTConf
	client  mqtt.Client
	handler NoteHandler
}

// NewClient prepares a client; nothing connects until Start.
func NewClient(log logger.Logger, cfg config.MQTTConf, handler NoteHandler) *Client {
	return &Client{
		log:     log,
		cfg:     cfg,
		handler: handler,
	}
}

// Start connects to the broker and subscribes to the note topic. The
// paho client reconnects and resubscribes on its own after drops.
func (c *Client) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", c.cfg.Host, c.cfg.Port)).
		SetUsername(c.cfg.User).
		SetPassword(c.cfg.Password).
		SetClientID(c.cfg.ClientID).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("connected: %v", c.client.IsConnected())
	return nil
}

// Stop disconnects from the broker.
func (c *Client) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

// connectHandler subscribes on every (re)connect so resubscription after
// a broker restart needs no extra bookkeeping.
func (c *Client) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Infof("client connected, subscribing to %s", c.cfg.Topic)

	token := c.client.Subscribe(c.cfg.Topic, 0, c.messageHandler)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("topic %s subscription error: %v", c.cfg.Topic, token.Error())
			}
		}
	}()
}

func (c *Client) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v", err)
}

// messageHandler decodes one strike and hands it to the engine. The
// handler only appends to the flash registry, so calling it inline
// keeps delivery ordered without risking a stall.
func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var p notePayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("message could not be parsed (%s): %v", msg.Payload(), err)
		return
	}
	note, velocity, err := clampNote(p)
	if err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("bad note payload (%s): %v", msg.Payload(), err)
		return
	}
	c.handler(note, velocity)
}

func clampNote(p notePayload) (uint8, uint8, error) {
	if p.Note < 0 || p.Note > 127 {
		return 0, 0, fmt.Errorf("note %d outside MIDI range", p.Note)
	}
	if p.Velocity < 0 || p.Velocity > 127 {
		return 0, 0, fmt.Errorf("velocity %d outside MIDI range", p.Velocity)
	}
	return uint8(p.Note), uint8(p.Velocity), nil
}
