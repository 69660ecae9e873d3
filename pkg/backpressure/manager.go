// Package backpressure classifies pipeline stage queue depth into a
// level for observability. Correctness-critical backpressure is the
// bounded channel itself (spec.md §5): a full outbox blocks the worker
// about to enqueue, a full inbox blocks producers. This package only
// turns queue utilization into a logged/metriced level so operators can
// see which stage is the bottleneck; it never gates or rejects work,
// unlike the teacher's Manager (which fed a throttling/rejection
// decision for remote sinks).
package backpressure

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level represents how full a stage's bounded queue is.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Config holds the utilization thresholds, as fractions of queue
// capacity, at which the level escalates.
type Config struct {
	LowThreshold      float64
	MediumThreshold   float64
	HighThreshold     float64
	CriticalThreshold float64
}

// DefaultConfig mirrors the teacher's default thresholds.
func DefaultConfig() Config {
	return Config{
		LowThreshold:      0.6,
		MediumThreshold:   0.75,
		HighThreshold:     0.9,
		CriticalThreshold: 0.95,
	}
}

// Manager tracks the current level for one named stage queue and logs
// transitions.
type Manager struct {
	config Config
	stage  string
	logger *logrus.Logger

	mu    sync.RWMutex
	level Level
}

// NewManager returns a Manager for the named stage.
func NewManager(stage string, config Config, logger *logrus.Logger) *Manager {
	if config.LowThreshold == 0 {
		config = DefaultConfig()
	}
	return &Manager{config: config, stage: stage, logger: logger}
}

// Observe reports the current queue depth and capacity, updating and
// returning the classified level. Transitions are logged at Warn for
// High/Critical and Debug otherwise, matching the teacher's level-based
// log severity escalation.
func (m *Manager) Observe(depth, capacity int) Level {
	utilization := 0.0
	if capacity > 0 {
		utilization = float64(depth) / float64(capacity)
	}
	newLevel := m.classify(utilization)

	m.mu.Lock()
	old := m.level
	m.level = newLevel
	m.mu.Unlock()

	if newLevel != old && m.logger != nil {
		fields := logrus.Fields{
			"stage":       m.stage,
			"old_level":   old.String(),
			"new_level":   newLevel.String(),
			"utilization": utilization,
			"depth":       depth,
			"capacity":    capacity,
			"observed_at": time.Now(),
		}
		if newLevel >= LevelHigh {
			m.logger.WithFields(fields).Warn("stage queue backpressure escalated")
		} else {
			m.logger.WithFields(fields).Debug("stage queue backpressure level changed")
		}
	}
	return newLevel
}

func (m *Manager) classify(utilization float64) Level {
	switch {
	case utilization >= m.config.CriticalThreshold:
		return LevelCritical
	case utilization >= m.config.HighThreshold:
		return LevelHigh
	case utilization >= m.config.MediumThreshold:
		return LevelMedium
	case utilization >= m.config.LowThreshold:
		return LevelLow
	default:
		return LevelNone
	}
}

// Level returns the most recently observed level.
func (m *Manager) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}
