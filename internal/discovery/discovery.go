// Package discovery announces the TCP listener over mDNS so clients on
// the local network can find the service without configuration.
package discovery

import (
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD service type clients browse for.
	ServiceType = "_wyoming._tcp"
	domain      = "local."
)

// Announcer advertises a running listener until Shutdown is called.
type Announcer struct {
	server *zeroconf.Server
	logger *slog.Logger
}

// Announce registers the service on the local network. Announcement is
// best effort: callers treat a returned error as a degraded start, not a
// fatal one.
func Announce(name string, port int, models []string, logger *slog.Logger) (*Announcer, error) {
	txt := []string{"proto=wyoming"}
	for _, model := range models {
		txt = append(txt, "model="+model)
	}

	server, err := zeroconf.Register(name, ServiceType, domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register failed: %w", err)
	}

	logger.Info("Announced service over mDNS",
		slog.String("name", name),
		slog.String("service", ServiceType),
		slog.Int("port", port),
	)
	return &Announcer{server: server, logger: logger}, nil
}

// Shutdown withdraws the announcement.
func (a *Announcer) Shutdown() {
	a.server.Shutdown()
	a.logger.Debug("Withdrew mDNS announcement")
}
