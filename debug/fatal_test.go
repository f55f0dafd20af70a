package debug_test

import (
	"testing"

	"github.com/clktmr/ps2/debug"
	"github.com/stretchr/testify/require"
)

func TestFatal(t *testing.T) {
	defer func() {
		r := recover()
		require.Equal(t, debug.Halted{Message: "Failed to load module: padman"}, r)
		require.EqualError(t, r.(error), "halt: Failed to load module: padman")
	}()
	debug.Fatal("Failed to load module: padman")
	t.Fatal("Fatal returned")
}
