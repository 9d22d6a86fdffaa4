package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsUnsupportedSampleRate(t *testing.T) {
	c := DefaultConfig()
	c.SampleRate = 22050
	require.Error(t, c.Validate())
}

func TestValidateRejectsUnsupportedChannelCount(t *testing.T) {
	c := DefaultConfig()
	c.Channels = 4
	require.Error(t, c.Validate())
}

func TestValidateRejectsNonPowerOfTwoBufferLength(t *testing.T) {
	c := DefaultConfig()
	c.BufferLength = 300
	require.Error(t, c.Validate())
}

func TestValidateRejectsBufferLengthOutOfRange(t *testing.T) {
	for _, n := range []int{16, 16384} {
		c := DefaultConfig()
		c.BufferLength = n
		require.Errorf(t, c.Validate(), "BufferLength=%d", n)
	}
}
