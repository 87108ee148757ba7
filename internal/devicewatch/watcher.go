// Package devicewatch listens for udev netlink events so an attached
// e-reader is noticed without polling or root-owned udev rules.
package devicewatch

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"marginalia/internal/config"
	"marginalia/internal/fetch"
	"marginalia/internal/pipeline"
)

type Watcher struct {
	pipeline *pipeline.Pipeline
	cfg      config.DeviceWatch

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New returns nil when device watching is disabled or misconfigured; a
// nil Watcher is safe to Start and Stop.
func New(p *pipeline.Pipeline, cfg config.DeviceWatch) *Watcher {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DeviceGlob) == "" || cfg.Source == "" {
		return nil
	}
	return &Watcher{pipeline: p, cfg: cfg}
}

// Start begins listening for udev netlink events.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		// Non-fatal: fetches can still be triggered over the API.
		log.Printf("Device watch: cannot open netlink socket, attach detection disabled: %v", err)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.monitorLoop(ctx, quit)

	log.Printf("Device watch: started, waiting for devices matching %s", w.cfg.DeviceGlob)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	log.Printf("Device watch: stopped")
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(ctx, uevent)
		case err := <-errs:
			log.Printf("Device watch: netlink error: %v", err)
		}
	}
}

// buildMatcher narrows the netlink stream to block-device attach events.
func (w *Watcher) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

func (w *Watcher) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		return
	}

	matched, err := filepath.Match(w.cfg.DeviceGlob, devname)
	if err != nil || !matched {
		return
	}

	log.Printf("Device watch: %s attached, fetching from '%s'", devname, w.cfg.Source)

	s, err := w.pipeline.FetchFromSource(ctx, w.cfg.Source)
	if err != nil {
		if errors.Is(err, fetch.ErrSourceBusy) {
			log.Printf("Device watch: fetch from '%s' already in progress", w.cfg.Source)
			return
		}
		log.Printf("Device watch: fetch from '%s' failed: %v", w.cfg.Source, err)
		return
	}

	log.Printf("Device watch: session %s is awaiting review (%d items)", s.ID, len(s.Items()))
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
