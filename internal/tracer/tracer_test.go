package tracer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFailsWithoutInterface(t *testing.T) {
	_, err := New("mtkflash-tracer-does-not-exist-0")
	require.Error(t, err)
}

func TestDirectionConstantsDistinct(t *testing.T) {
	require.NotEqual(t, DirectionOut, DirectionIn)
}
