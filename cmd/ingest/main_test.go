package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	chunks := chunkText(strings.Repeat("a", 1000), 512, 64)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 512)
	assert.Len(t, chunks[1], 512)
	// Last window covers the remaining tail from offset 896.
	assert.Len(t, chunks[2], 104)
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := chunkText("short text", 512, 64)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Nil(t, chunkText("   ", 512, 64))
}

func TestChunkTextMultibyte(t *testing.T) {
	text := strings.Repeat("宪", 10)
	chunks := chunkText(text, 4, 1)
	for _, chunk := range chunks {
		for _, r := range chunk {
			assert.Equal(t, '宪', r)
		}
	}
}
