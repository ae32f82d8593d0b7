package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Contains(t, info.GoVersion, "go")
}

func TestInfoFormats(t *testing.T) {
	info := Info{Version: "1.0.0", GitCommit: "abc123", BuildTime: "now", GoVersion: "go1.25.1"}

	assert.Equal(t, "Version: 1.0.0, GitCommit: abc123, BuildTime: now, GoVersion: go1.25.1", info.String())

	out, err := info.JSON()
	require.NoError(t, err)

	var decoded Info
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, info, decoded)
}
