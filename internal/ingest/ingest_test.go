// FilePath: internal/ingest/ingest_test.go
package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabwatch/factoryhub/internal/models"
)

func TestMachineIDFromTopic(t *testing.T) {
	id, err := machineIDFromTopic("factory/spray/sm-42/telemetry")
	require.NoError(t, err)
	assert.Equal(t, "sm-42", id)

	for _, topic := range []string{
		"factory/spray/telemetry",
		"factory/spray/sm-42/status",
		"factory/spray//telemetry",
		"sm-42",
	} {
		_, err := machineIDFromTopic(topic)
		assert.Error(t, err, "topic %q", topic)
	}
}

func TestDecodePayload(t *testing.T) {
	payload, err := decodePayload([]byte(`{"status":1,"energy":120.5}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, payload.Status)
	assert.Equal(t, 120.5, payload.Energy)

	_, err = decodePayload([]byte(`{"status":`))
	assert.Error(t, err)

	_, err = decodePayload([]byte(`{"status":"on"}`))
	assert.Error(t, err)
}
