package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

func TestNew_JSONConComponente(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "info", Output: &buf})

	log.Component("ledger").Info().Str("op", "create_order").Msg("orden creada")
	log.Debug().Msg("descartado por nivel")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "create_order", entry["op"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "orden creada", entry["message"])
}

func TestNew_NivelInvalidoUsaInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "verbose", Output: &buf})
	log.Debug().Msg("no")
	assert.Zero(t, buf.Len())
	log.Info().Msg("si")
	assert.NotZero(t, buf.Len())
}
