package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, distinct("a", "", "a", "b"))
	assert.Empty(t, distinct("", ""))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]string{"c": "", "a": "", "b": ""}))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "stat", "ls", "cat", "props", "links", "history", "env", "serve", "scan"} {
		assert.True(t, names[want], want)
	}
}
