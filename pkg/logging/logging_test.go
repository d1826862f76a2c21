package logging_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"gearshop/pkg/logging"
)

func TestSetupLevels(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	logging.Setup("warn", false)
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logging.Setup("nonsense", true)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	logging.Setup("", false)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	require.NotNil(t, zerolog.DefaultContextLogger)
}
