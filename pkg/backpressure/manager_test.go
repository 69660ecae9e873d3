package backpressure

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestObserveClassifiesLevel(t *testing.T) {
	m := NewManager("combiner", DefaultConfig(), logrus.New())
	assert.Equal(t, LevelNone, m.Observe(0, 100))
	assert.Equal(t, LevelLow, m.Observe(65, 100))
	assert.Equal(t, LevelCritical, m.Observe(96, 100))
}

func TestObserveZeroCapacity(t *testing.T) {
	m := NewManager("stage", DefaultConfig(), logrus.New())
	assert.Equal(t, LevelNone, m.Observe(0, 0))
}
