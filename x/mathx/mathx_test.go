package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapRange(t *testing.T) {
	assert.Equal(t, uint16(30), MapRange[uint16](3650, 3600, 3700, 20, 40))
	assert.Equal(t, uint16(20), MapRange[uint16](3000, 3600, 3700, 20, 40))
	assert.Equal(t, uint16(40), MapRange[uint16](4000, 3600, 3700, 20, 40))
	assert.Equal(t, uint8(75), MapRange[uint8](1, 0, 4, 100, 0), "descending output")
	assert.Equal(t, uint32(7), MapRange[uint32](9, 5, 5, 7, 9), "empty input range")
}

func TestClampSwapsBounds(t *testing.T) {
	assert.Equal(t, 5, Clamp(9, 5, 1))
	assert.Equal(t, 1, Clamp(-3, 5, 1))
	assert.True(t, Between(3, 5, 1))
	assert.Equal(t, int32(4), Abs(int32(-4)))
}
