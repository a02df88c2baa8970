package physmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem/pmm"
)

func TestNew(t *testing.T) {
	_, err := New(0)
	assert.Equal(t, errInvalidSize, err)

	_, err = New(mem.PageSize + 1)
	assert.Equal(t, errInvalidSize, err)

	m, err := New(1 * mem.Mb)
	require.Nil(t, err)
	defer m.Close()

	assert.Equal(t, 1*mem.Mb, m.Size())
	assert.Equal(t, uint32(256), m.FrameCount())
}

func TestMapTemporary(t *testing.T) {
	m, err := New(16 * mem.PageSize)
	require.Nil(t, err)
	defer m.Close()

	win, err := m.MapTemporary(pmm.Frame(3))
	require.Nil(t, err)
	require.Len(t, win, int(mem.PageSize))
	assert.Equal(t, int(mem.PageSize), cap(win), "window must not extend into the next frame")

	for i := range win {
		assert.Zero(t, win[i])
	}

	win[0], win[len(win)-1] = 0xaa, 0xbb

	// A second mapping of the same frame aliases the first one
	alias, err := m.MapTemporary(pmm.Frame(3))
	require.Nil(t, err)
	assert.Equal(t, byte(0xaa), alias[0])
	assert.Equal(t, byte(0xbb), alias[len(alias)-1])

	next, err := m.MapTemporary(pmm.Frame(4))
	require.Nil(t, err)
	assert.Zero(t, next[0])

	_, err = m.MapTemporary(pmm.Frame(16))
	assert.Equal(t, ErrFrameOutOfRange, err)

	_, err = m.MapTemporary(pmm.InvalidFrame)
	assert.Equal(t, ErrFrameOutOfRange, err)
}

func TestClose(t *testing.T) {
	m, err := New(mem.PageSize)
	require.Nil(t, err)

	assert.Nil(t, m.Close())
	assert.Nil(t, m.Close(), "closing twice is a no-op")
}
