package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryIsBounded(t *testing.T) {
	s := New(5)
	for i := 0; i < 8; i++ {
		s.Append("g", "c", "user", fmt.Sprintf("m%d", i))
	}
	h := s.History("g", "c")
	require.Len(t, h, 5)
	assert.Equal(t, "m3", h[0].Content)
	assert.Equal(t, "m7", h[4].Content)
	assert.Empty(t, s.History("g", "other"))
}

func TestHistoryLimitFloor(t *testing.T) {
	assert.Equal(t, MinHistoryLimit, New(1).Limit())
	assert.Equal(t, DefaultHistoryLimit, New(0).Limit())
	assert.Equal(t, 30, New(30).Limit())
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := New(4)
	s.Append("g", "c", "user", "hola")
	h := s.History("g", "c")
	h[0].Content = "cambiado"
	assert.Equal(t, "hola", s.History("g", "c")[0].Content)
}

func TestResetAndUserState(t *testing.T) {
	s := New(4)
	s.Append("g", "c", "user", "hola")
	s.UpdateUser("g", "u", func(st *UserState) { st.ActiveItem = "Zenith" })
	s.UpdateUser("g", "u", func(st *UserState) { st.LastImageURL = "https://img" })

	assert.Equal(t, UserState{ActiveItem: "Zenith", LastImageURL: "https://img"}, s.User("g", "u"))

	s.ResetChannel("g", "c")
	s.ResetUser("g", "u")
	assert.Empty(t, s.History("g", "c"))
	assert.Equal(t, UserState{}, s.User("g", "u"))
}
