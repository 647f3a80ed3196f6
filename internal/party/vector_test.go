package party

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeers_SkipsSelf(t *testing.T) {
	assert.Equal(t, []uint16{2, 3, 4}, Peers(1, 4))
	assert.Equal(t, []uint16{1, 2, 4}, Peers(3, 4))
	assert.Equal(t, []uint16{1, 2, 3}, Peers(4, 4))
	assert.Empty(t, Peers(1, 1))
}

func TestAssemble_IndexMatchesOrdinal(t *testing.T) {
	for n := uint16(1); n <= 6; n++ {
		for self := uint16(1); self <= n; self++ {
			others := make([]string, 0, n-1)
			for _, p := range Peers(self, n) {
				others = append(others, fmt.Sprintf("p%d", p))
			}

			v, err := Assemble(self, n, fmt.Sprintf("p%d", self), others)
			require.NoError(t, err)
			require.True(t, v.Complete())

			items := v.Slice()
			require.Len(t, items, int(n))
			for k, item := range items {
				assert.Equal(t, fmt.Sprintf("p%d", k+1), item, "n=%d self=%d index=%d", n, self, k)
			}
		}
	}
}

func TestAssemble_WrongCount(t *testing.T) {
	_, err := Assemble[int](2, 3, 0, []int{1})
	require.Error(t, err)
}

func TestVector_SetOnce(t *testing.T) {
	v := NewVector[int](2)
	require.NoError(t, v.Set(1, 10))
	require.Error(t, v.Set(1, 11))
	require.Error(t, v.Set(0, 1))
	require.Error(t, v.Set(3, 1))
	assert.False(t, v.Complete())
	assert.Equal(t, 10, v.Get(1))
	assert.Equal(t, 0, v.Get(5))
}

func TestMap_KeepsOrdinals(t *testing.T) {
	v, err := Assemble[int](2, 3, 20, []int{10, 30})
	require.NoError(t, err)

	doubled, err := Map(v, func(ordinal uint16, item int) (string, error) {
		return fmt.Sprintf("%d:%d", ordinal, item*2), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1:20", "2:40", "3:60"}, doubled.Slice())

	_, err = Map(v, func(ordinal uint16, item int) (int, error) {
		if ordinal == 3 {
			return 0, fmt.Errorf("boom")
		}
		return item, nil
	})
	require.Error(t, err)
}
