package statsd

import (
	"testing"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"gotest.tools/v3/assert"
)

func TestDefaultClientIsNoOp(t *testing.T) {
	_, ok := Client().(*ddstatsd.NoOpClient)
	assert.Assert(t, ok)

	// Emitters must be safe to call before Init.
	EmitSweepStat(time.Now(), "matchmaking")
	EmitMatchStarted("local")
	EmitTradeStat("completed")
}

func TestInitRequiresAddress(t *testing.T) {
	assert.ErrorContains(t, Init("", nil), "address")
}
