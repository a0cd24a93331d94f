package episodic

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelFlagBound(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)

	// The flag default is visible through viper once bound.
	assert.Equal(t, "info", viper.GetString("log.level"))
}

func TestQuickstartRegistered(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "quickstart" {
			assert.NotNil(t, cmd.Flags().Lookup("episodes"))
			return
		}
	}
	t.Fatal("quickstart command not registered")
}
