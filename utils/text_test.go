package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"¡Banéalo YA!!", "banealo ya"},
		{"  quítale   el rol  ", "quitale el rol"},
		{"don't", "dont"},
		{"<@123456789012345678>, ¿qué tal?", "123456789012345678 que tal"},
		{"nuevo_chat - ok", "nuevo_chat - ok"},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny(Normalize("Desmutéalo por favor"), []string{"desmute"}))
	assert.True(t, ContainsAny("reinicia conversacion", []string{"reinicia conversación"}))
	assert.False(t, ContainsAny("hola", []string{"ban", "kick"}))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "ñañ", Truncate("ñañaña", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestChunkString(t *testing.T) {
	chunks := ChunkString(strings.Repeat("a", 4500), 2000)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 500)
	assert.Empty(t, ChunkString("", 10))
}
