package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-admissions-auth/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { logging.Configure(&bytes.Buffer{}, "info", "PROD") })

	t.Run("json outside DEV", func(t *testing.T) {
		var buf bytes.Buffer
		logging.Configure(&buf, "debug", "PROD")

		log.Debug().Str("user_id", "u1").Msg("Session changed")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "debug", line["level"])
		require.Equal(t, "u1", line["user_id"])
		require.Equal(t, "Session changed", line["message"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logging.Configure(&buf, "warn", "PROD")

		log.Info().Msg("hidden")
		require.Zero(t, buf.Len())
		require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logging.Configure(&bytes.Buffer{}, "verbose", "PROD")
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	t.Run("console in DEV", func(t *testing.T) {
		var buf bytes.Buffer
		logging.Configure(&buf, "info", "dev")

		log.Info().Msg("Server listening")
		require.Contains(t, buf.String(), "Server listening")
		require.False(t, json.Valid(buf.Bytes()))
	})
}
