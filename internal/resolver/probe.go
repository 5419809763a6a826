package resolver

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	probeInterval = 10 * time.Minute
	probeTimeout  = 5 * time.Second
)

// Prober keeps the public instance list ordered healthy-first so the chain
// wastes no time on dead mirrors. Unhealthy instances stay in the list as a
// last resort since a probe failure can be transient.
type Prober struct {
	client     *http.Client
	interval   time.Duration
	mu         sync.RWMutex
	configured []string
	ordered    []string
}

func NewProber(instances []string, client *http.Client) *Prober {
	cleaned := make([]string, 0, len(instances))
	for _, instance := range instances {
		instance = strings.TrimRight(strings.TrimSpace(instance), "/")
		if instance != "" {
			cleaned = append(cleaned, instance)
		}
	}
	ordered := make([]string, len(cleaned))
	copy(ordered, cleaned)
	return &Prober{
		client:     client,
		interval:   probeInterval,
		configured: cleaned,
		ordered:    ordered,
	}
}

// Instances returns a snapshot of the instance list, healthy first.
func (p *Prober) Instances() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.ordered))
	copy(out, p.ordered)
	return out
}

// Start launches the probe loop. It runs until ctx is cancelled.
func (p *Prober) Start(ctx context.Context) {
	if len(p.configured) == 0 {
		return
	}
	go p.loop(ctx)
}

func (p *Prober) loop(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Prober) refresh(ctx context.Context) {
	var healthy, unhealthy []string
	for _, instance := range p.configured {
		if p.check(ctx, instance) {
			healthy = append(healthy, instance)
		} else {
			unhealthy = append(unhealthy, instance)
		}
	}

	p.mu.Lock()
	p.ordered = append(healthy, unhealthy...)
	p.mu.Unlock()

	log.Printf("[RESOLVER] instance probe: %d/%d healthy", len(healthy), len(p.configured))
}

func (p *Prober) check(ctx context.Context, instance string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/healthcheck", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode == http.StatusOK
}
