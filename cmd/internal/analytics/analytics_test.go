package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroClientIsNoop(t *testing.T) {
	var c Client
	assert.False(t, c.Enabled())
	c.Identify()
	c.TrackRanCommand("evaluate", map[string]string{PropertyProject: "demo"})
	c.Close()

	assert.False(t, New("").Enabled())
}
