package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("rebalance_process", log)
	time.Sleep(2 * time.Millisecond)
	d := stop()

	assert.GreaterOrEqual(t, d, 2*time.Millisecond)
	assert.Contains(t, buf.String(), `"operation":"rebalance_process"`)
	assert.Contains(t, buf.String(), "Operation completed")
	assert.NotContains(t, buf.String(), "Slow operation detected")
}
