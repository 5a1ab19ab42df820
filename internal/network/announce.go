package network

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// DNS_SD_SERVICE is the service type bridges browse for
const DNS_SD_SERVICE = "_brickrx._udp"

// Announcement describes the advertised UDP listener
type Announcement struct {
	Name     string
	Port     int
	Identity string
	Profile  string
}

// Announce advertises the UDP listener over mDNS until ctx is cancelled
func Announce(ctx context.Context, a Announcement, logger *log.Logger) error {
	cfg := dnssd.Config{
		Name: a.Name,
		Type: DNS_SD_SERVICE,
		Port: a.Port,
		Text: map[string]string{
			"identity": a.Identity,
			"profile":  a.Profile,
		},
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create DNS-SD service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create DNS-SD responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("failed to add DNS-SD service: %w", err)
	}

	logger.Info("Announcing receiver", "service", DNS_SD_SERVICE, "name", a.Name, "port", a.Port)

	if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("DNS-SD responder: %w", err)
	}
	return nil
}
