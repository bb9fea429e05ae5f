package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/config"
)

func TestDecode_ObjectBuriedInProse(t *testing.T) {
	reply := "Sure! Here is your answer:\n```json\n{\"ok\": true, \"reason\": \"looks good\"}\n```\nLet me know if you need anything else."

	var verdict struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	require.True(t, Decode(reply, &verdict))
	assert.True(t, verdict.OK)
	assert.Equal(t, "looks good", verdict.Reason)
}

func TestDecode_NoObject(t *testing.T) {
	var out map[string]any
	assert.False(t, Decode("no json here at all", &out))
	assert.False(t, Decode("", &out))
	assert.False(t, Decode("} backwards {", &out))
}

func TestDecode_MalformedObject(t *testing.T) {
	var out map[string]any
	assert.False(t, Decode("prefix {\"broken\": } suffix", &out))
}

func TestDecode_NestedObjects(t *testing.T) {
	reply := `result: {"steps": [{"title": "a"}, {"title": "b"}]}`
	var out struct {
		Steps []struct {
			Title string `json:"title"`
		} `json:"steps"`
	}
	require.True(t, Decode(reply, &out))
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "b", out.Steps[1].Title)
}

func TestNewClient_RequiresLogger(t *testing.T) {
	_, err := NewClient(config.OracleConfig{Model: "m"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(config.OracleConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")
}

func TestNewClient_Succeeds(t *testing.T) {
	c, err := NewClient(config.OracleConfig{
		Model:             "test-model",
		BaseURL:           "http://localhost:1",
		APIKey:            config.Secret("k"),
		RequestsPerSecond: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NotNil(t, c.limiter)
}
