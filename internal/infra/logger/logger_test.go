package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTo_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "prod")
	log.Debug("hidden")
	log.Info("lot counted", "lot_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "lot counted", rec["msg"])
	assert.Equal(t, float64(7), rec["lot_id"])
	assert.Equal(t, "pharmacy-ledger", rec["service"])
	assert.NotContains(t, rec, "source")

	buf.Reset()
	NewTo(&buf, "dev").Debug("visible")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Contains(t, rec, "source")
}
