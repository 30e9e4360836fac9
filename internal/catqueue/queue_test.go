package catqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrainReturnsInOrder(t *testing.T) {
	q := New()
	q.EnqueueString("FA00014074000;")
	q.EnqueueString("MD2;")

	require.False(t, q.Empty())

	drained := q.Drain()
	require.Equal(t, [][]byte{[]byte("FA00014074000;"), []byte("MD2;")}, drained)
	require.True(t, q.Empty())
}

func TestDrainEmptyReturnsNil(t *testing.T) {
	q := New()
	require.Nil(t, q.Drain())
}

func TestDrainClearsQueue(t *testing.T) {
	q := New()
	q.EnqueueString("FA;")
	_ = q.Drain()
	require.Nil(t, q.Drain())
}
