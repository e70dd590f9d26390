package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, "53.3498", RoundCoordinate(53.3498))
	assert.Equal(t, "53.349801", RoundCoordinate(53.3498006))
	assert.Equal(t, "-6.2603", RoundCoordinate(-6.26030000001))
	assert.Equal(t, "0", RoundCoordinate(0))
}

func TestRoundAltitude(t *testing.T) {
	assert.Equal(t, "408.2", RoundAltitude(408.24))
	assert.Equal(t, "408.3", RoundAltitude(408.25))
	assert.Equal(t, "408", RoundAltitude(408.0))
}
