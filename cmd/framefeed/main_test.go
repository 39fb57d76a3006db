package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framefeed/internal/command/root"
)

// All subcommands are registered by this package's imports, so their flag
// bindings share one global viper. Same-named flags must stay separate:
// each command reads its own values, not whichever package initialized
// last.
func TestSubcommandFlagKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "data/videos", viper.GetString("preprocess-input"))
	assert.Equal(t, "data/corpus", viper.GetString("preprocess-output"))
	assert.Equal(t, "data/corpus/10fps_160x90", viper.GetString("pack-input"))
	assert.Equal(t, "data/records", viper.GetString("pack-output"))
	assert.Equal(t, 16, viper.GetInt("bench-seq-len"))
}

func TestSubcommandFlagValuesReachTheirOwnKeys(t *testing.T) {
	packCmd, _, err := root.Cmd.Find([]string{"pack"})
	require.NoError(t, err)
	require.NoError(t, packCmd.PersistentFlags().Set("input", "/tmp/packed-corpus"))
	require.NoError(t, packCmd.PersistentFlags().Set("upload", "true"))

	assert.Equal(t, "/tmp/packed-corpus", viper.GetString("pack-input"))
	assert.True(t, viper.GetBool("pack-upload"))

	// the sibling command's same-named flags are untouched
	assert.Equal(t, "data/videos", viper.GetString("preprocess-input"))
	assert.False(t, viper.GetBool("preprocess-upload"))
}
