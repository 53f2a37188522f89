package util_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidwire/discordvoice/pkg/util"
)

func TestCell_SetThenWaitReturnsValue(t *testing.T) {
	c := util.NewCell[int]()
	c.Set(42)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, ok := c.Wait(ctx)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCell_SecondSetIsNoOp(t *testing.T) {
	c := util.NewCell[string]()
	c.Set("first")
	c.Set("second")

	v, ok := c.TryGet()
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestCell_WaitUnblocksOnContextCancel(t *testing.T) {
	c := util.NewCell[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := c.Wait(ctx)
	assert.False(t, ok)
}
