// Copyright 2026 The reqwire Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reqwire/reqwire/status"
	"github.com/reqwire/reqwire/uri"
)

const (
	defaultDialTimeout = 10 * time.Second
	sweepInterval      = time.Second
)

// A Pool is a session Factory backed by per-destination idle connection
// lists. Its zero value is a valid factory with no idle expiry, no
// connection cap, and no dial pacing.
//
// The pool serializes access to idle connections; a connection is owned
// by exactly one session between ProvideSession and Close.
type Pool struct {
	// DialTimeout bounds new dials when Params.DialTimeout is zero.
	// Zero means 10 seconds.
	DialTimeout time.Duration
	// IdleTimeout closes pooled connections that sit idle longer than
	// this. Zero disables the sweep.
	IdleTimeout time.Duration
	// MaxPerDestination caps connections (idle plus in-use) per
	// scheme://host:port destination. Zero means no cap.
	MaxPerDestination int
	// TLS is the client TLS configuration for https destinations.
	// Sessions may override it via Params.TLS.
	TLS *tls.Config
	// DialPacer, when set, paces new dials. Waiting respects the dial
	// timeout, so a starved pacer fails the acquisition instead of
	// blocking forever.
	DialPacer *rate.Limiter
	// Logger receives structured debug logs. Nil means no logging.
	Logger *zap.Logger

	mu    sync.Mutex
	idle  map[string][]*wire
	count map[string]int
	once  sync.Once
	stop  chan struct{}
}

// wire is one pooled connection with its buffered endpoints.
type wire struct {
	id       string
	nc       net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	recycled bool
	lastUse  time.Time
}

func (p *Pool) init() {
	p.once.Do(func() {
		p.mu.Lock()
		p.idle = make(map[string][]*wire)
		p.count = make(map[string]int)
		p.stop = make(chan struct{})
		// The sweeper holds its own reference; Close nils p.stop under
		// the mutex, so the goroutine must never read the field again.
		stop := p.stop
		p.mu.Unlock()
		if p.IdleTimeout > 0 {
			go p.sweep(stop)
		}
	})
}

// ProvideSession returns a session for the target, reusing an idle
// pooled connection unless params.Fresh forbids it.
func (p *Pool) ProvideSession(target *uri.URI, params Params) (Session, error) {
	p.init()
	if target == nil || target.Status() != status.OK {
		return nil, status.New(status.UriParsingError, "target URI did not parse")
	}
	scheme := strings.ToLower(target.Scheme())
	if scheme != "http" && scheme != "https" {
		return nil, status.Newf(status.ConnectionProblem, "unsupported scheme %q", target.Scheme())
	}
	key := scheme + "://" + target.Authority()

	if !params.Fresh {
		if w := p.takeIdle(key); w != nil {
			p.logger().Debug("reusing pooled connection",
				zap.String("conn", w.id), zap.String("destination", key))
			return newHTTP1(p, key, w, params), nil
		}
	}

	p.mu.Lock()
	if p.MaxPerDestination > 0 && p.count[key] >= p.MaxPerDestination {
		p.mu.Unlock()
		return nil, status.Newf(status.ConnectionProblem, "connection limit reached for %s", key)
	}
	p.count[key]++
	p.mu.Unlock()

	w, err := p.dial(scheme, target, key, params)
	if err != nil {
		p.mu.Lock()
		p.count[key]--
		p.mu.Unlock()
		return nil, err
	}
	return newHTTP1(p, key, w, params), nil
}

func (p *Pool) dial(scheme string, target *uri.URI, key string, params Params) (*wire, error) {
	timeout := params.DialTimeout
	if timeout <= 0 {
		timeout = p.DialTimeout
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if p.DialPacer != nil {
		if err := p.DialPacer.Wait(ctx); err != nil {
			return nil, status.Wrap(status.ConnectionProblem, "waiting for dial slot to "+key, err)
		}
	}

	d := net.Dialer{}
	var nc net.Conn
	var err error
	if scheme == "https" {
		cfg := params.TLS
		if cfg == nil {
			cfg = p.TLS
		}
		if cfg == nil {
			cfg = &tls.Config{}
		} else {
			cfg = cfg.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = target.Host()
		}
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = []string{"http/1.1"}
		}
		td := tls.Dialer{NetDialer: &d, Config: cfg}
		nc, err = td.DialContext(ctx, "tcp", target.Authority())
	} else {
		nc, err = d.DialContext(ctx, "tcp", target.Authority())
	}
	if err != nil {
		return nil, status.Wrap(status.ConnectionProblem, "dialing "+key, err)
	}
	w := &wire{
		id:      uuid.NewString(),
		nc:      nc,
		br:      bufio.NewReader(nc),
		bw:      bufio.NewWriter(nc),
		lastUse: time.Now(),
	}
	p.logger().Debug("dialed new connection",
		zap.String("conn", w.id), zap.String("destination", key))
	return w, nil
}

func (p *Pool) takeIdle(key string) *wire {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.idle[key]
	if len(list) == 0 {
		return nil
	}
	w := list[len(list)-1]
	p.idle[key] = list[:len(list)-1]
	return w
}

// release returns a connection to the idle list for future reuse.
func (p *Pool) release(key string, w *wire) {
	w.recycled = true
	w.lastUse = time.Now()
	p.mu.Lock()
	p.idle[key] = append(p.idle[key], w)
	p.mu.Unlock()
}

// drop closes a connection and forgets it.
func (p *Pool) drop(key string, w *wire) error {
	p.mu.Lock()
	if p.count[key] > 0 {
		p.count[key]--
	}
	p.mu.Unlock()
	return w.nc.Close()
}

func (p *Pool) sweep(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.expireIdle()
		case <-stop:
			return
		}
	}
}

func (p *Pool) expireIdle() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, list := range p.idle {
		kept := list[:0]
		for _, w := range list {
			if now.Sub(w.lastUse) > p.IdleTimeout {
				_ = w.nc.Close()
				if p.count[key] > 0 {
					p.count[key]--
				}
				p.logger().Debug("closed expired idle connection",
					zap.String("conn", w.id), zap.String("destination", key))
				continue
			}
			kept = append(kept, w)
		}
		if len(kept) == 0 {
			delete(p.idle, key)
		} else {
			p.idle[key] = kept
		}
	}
}

// CloseIdleConnections closes every pooled idle connection immediately.
// Connections currently owned by a session are untouched.
func (p *Pool) CloseIdleConnections() {
	p.init()
	p.mu.Lock()
	for key, list := range p.idle {
		for _, w := range list {
			_ = w.nc.Close()
			if p.count[key] > 0 {
				p.count[key]--
			}
		}
		delete(p.idle, key)
	}
	p.mu.Unlock()
}

// Close stops the idle sweep and closes all idle connections, returning
// the combined close errors. Active sessions keep their connections.
func (p *Pool) Close() error {
	p.init()
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	var err error
	for key, list := range p.idle {
		for _, w := range list {
			err = multierr.Append(err, w.nc.Close())
			if p.count[key] > 0 {
				p.count[key]--
			}
		}
		delete(p.idle, key)
	}
	p.mu.Unlock()
	return err
}

func (p *Pool) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
