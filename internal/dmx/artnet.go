package dmx

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/Haba1234/go-artnet"

	"github.com/IronBasement/drum-lights/internal/logger"
)

// addressRange specifies the network CIDR an art-net network should have.
const addressRange = "192.168.6.0/24"

// ArtNetSender pushes universe frames to Art-Net nodes over UDP. It is
// the backend for rigs reached through a network node instead of a
// serial adapter; break and mark-after-break framing is the node's job.
type ArtNetSender struct {
	log        logger.Logger
	controller *artnet.Controller

	mu      sync.Mutex
	started bool
}

// NewArtNetSender builds the Art-Net controller bound to the interface
// inside the art-net address range.
func NewArtNetSender(log logger.Logger) (*ArtNetSender, error) {
	ip, err := findArtNetIP()
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}
	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: no interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	host = strings.ToLower(strings.Split(host, ".")[0])

	log.With(logger.Fields{"module": "dmx"}).Infof("using Art-Net IP %s and hostname %s", ip.String(), host)

	senderLogger := artnet.NewDefaultLogger(log.GetLevel())

	return &ArtNetSender{
		log:        log,
		controller: artnet.NewController(host, ip, senderLogger, artnet.MaxFPS(30)),
	}, nil
}

func (a *ArtNetSender) Connect() error {
	if err := a.controller.Start(); err != nil {
		return fmt.Errorf("failed to start art-net controller: %w", err)
	}
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	return nil
}

func (a *ArtNetSender) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

func (a *ArtNetSender) Send(u Universe) error {
	// Universe 0 only; the rig occupies the head of a single universe.
	a.controller.SendDMXToAddress([UniverseSize]byte(u), artnet.Address{Net: 0, SubUni: 0})
	return nil
}

func (a *ArtNetSender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.controller.Stop()
	a.started = false
	return nil
}

// findArtNetIP finds the interface with an address inside addressRange.
func findArtNetIP() (net.IP, error) {
	_, cidrNet, _ := net.ParseCIDR(addressRange)
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if strings.Contains(ip.String(), ":") {
			continue
		}
		if cidrNet.Contains(ip) {
			return ip, nil
		}
	}

	return nil, nil
}
