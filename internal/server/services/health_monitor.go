package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pion/stun/v3"

	"github.com/kamikazebr/sentinel/internal/server/wireguard"
	"github.com/kamikazebr/sentinel/pkg/models"
)

const (
	DefaultHealthTarget   = "stun.l.google.com:19302"
	DefaultHealthInterval = 5 * time.Second

	latencyHistory = 50
	probeAttempts  = 3
	probeTimeout   = 2 * time.Second
)

// LatencyProber measures one round trip to the probe target
type LatencyProber interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// STUNProber times a STUN binding request against target
type STUNProber struct {
	target  string
	timeout time.Duration
}

func NewSTUNProber(target string) *STUNProber {
	if target == "" {
		target = DefaultHealthTarget
	}
	return &STUNProber{target: target, timeout: probeTimeout}
}

func (p *STUNProber) Probe(ctx context.Context) (time.Duration, error) {
	uriStr := strings.TrimSpace(p.target)
	if !strings.HasPrefix(uriStr, "stun:") {
		uriStr = "stun:" + uriStr
	}

	uri, err := stun.ParseURI(uriStr)
	if err != nil {
		return 0, fmt.Errorf("invalid probe target: %w", err)
	}

	client, err := stun.DialURI(uri, &stun.DialConfig{})
	if err != nil {
		return 0, err
	}
	defer client.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	done := make(chan error, 1)
	start := time.Now()

	go func() {
		err := client.Do(msg, func(res stun.Event) {
			done <- res.Error
		})
		if err != nil {
			done <- err
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case err := <-done:
		if err != nil {
			return 0, err
		}
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SystemStats is a point-in-time view of host load
type SystemStats struct {
	CPUUsage      float64
	RAMUsage      float64
	UptimeSeconds int64
}

// HealthMonitor keeps a rolling latency history and reports host metrics
type HealthMonitor struct {
	prober   LatencyProber
	gateway  Gateway
	interval time.Duration
	clock    Clock
	sysinfo  func() SystemStats

	mu      sync.Mutex
	history []models.LatencyPoint
}

func NewHealthMonitor(prober LatencyProber, gateway Gateway, interval time.Duration, clock Clock) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthMonitor{
		prober:   prober,
		gateway:  gateway,
		interval: interval,
		clock:    clock,
		sysinfo:  readSystemStats,
	}
}

// Run polls immediately and then every interval until ctx is cancelled
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll takes one latency sample of probeAttempts round trips
func (m *HealthMonitor) Poll(ctx context.Context) models.LatencyPoint {
	var samples []float64
	for i := 0; i < probeAttempts; i++ {
		rtt, err := m.prober.Probe(ctx)
		if err != nil {
			slog.Debug("Latency probe failed", "error", err)
			continue
		}
		samples = append(samples, float64(rtt.Microseconds())/1000)
	}

	avg, jitter := latencyStats(samples)
	point := models.LatencyPoint{
		Timestamp:  m.clock.now(),
		Ping:       round1(avg),
		Jitter:     round1(jitter),
		PacketLoss: round1(float64(probeAttempts-len(samples)) / probeAttempts * 100),
	}

	m.mu.Lock()
	m.history = append(m.history, point)
	if over := len(m.history) - latencyHistory; over > 0 {
		m.history = m.history[over:]
	}
	m.mu.Unlock()

	return point
}

// Snapshot combines host metrics, latency history and active tunnel count
func (m *HealthMonitor) Snapshot(ctx context.Context) models.HealthSnapshot {
	stats := m.sysinfo()
	now := m.clock.now()

	m.mu.Lock()
	history := make([]models.LatencyPoint, len(m.history))
	copy(history, m.history)
	m.mu.Unlock()

	snap := models.HealthSnapshot{
		CPUUsage:      round1(stats.CPUUsage),
		RAMUsage:      round1(stats.RAMUsage),
		Uptime:        formatUptime(stats.UptimeSeconds),
		ActiveTunnels: m.gateway.CountActive(ctx, now, wireguard.HandshakeWindow),
		Latency:       history,
	}
	if len(history) > 0 {
		loss := history[len(history)-1].PacketLoss
		snap.PacketLoss = &loss
	}
	return snap
}

// latencyStats returns the mean and sample standard deviation
func latencyStats(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	avg := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		variance += (s - avg) * (s - avg)
	}
	variance /= float64(max(len(samples)-1, 1))
	return avg, math.Sqrt(variance)
}

func formatUptime(seconds int64) string {
	return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
