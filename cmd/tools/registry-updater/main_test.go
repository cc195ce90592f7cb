package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"franchise-ledger/pkg/registry"
)

func useTempRegistry(t *testing.T) string {
	t.Helper()
	prev := registryPath
	registryPath = filepath.Join(t.TempDir(), "registry", "activity-registry.json")
	t.Cleanup(func() { registryPath = prev })
	return registryPath
}

func freezeHolding() *registry.Activity {
	return &registry.Activity{
		ID:           "ledger.token.freeze",
		DisplayName:  "Freeze Holding",
		Description:  "Blocks transfers of one holding",
		Category:     "token",
		TaskType:     "freeze-holding",
		InputSchema:  map[string]interface{}{"type": "object"},
		OutputSchema: map[string]interface{}{"type": "object"},
		ErrorCodes:   []string{"NOT_FOUND", "INVALID_STATUS"},
		Timeout:      "10s",
	}
}

func TestExportThenValidate(t *testing.T) {
	path := useTempRegistry(t)

	require.NoError(t, exportDefault())
	require.NoError(t, validateRegistry())

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.LastUpdated)

	_, ok := reg.Find("mint-tokens")
	assert.True(t, ok)
}

func TestAddActivity(t *testing.T) {
	path := useTempRegistry(t)

	// a missing file starts a fresh registry
	require.NoError(t, addActivity(freezeHolding()))
	require.NoError(t, validateRegistry())

	dup := freezeHolding()
	assert.ErrorContains(t, addActivity(dup), "already exists")

	dup.ID = "ledger.token.freeze.v2"
	assert.ErrorContains(t, addActivity(dup), "already served")

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 1)
}

func TestUpdateActivity(t *testing.T) {
	useTempRegistry(t)
	require.NoError(t, exportDefault())

	tests := []struct {
		name    string
		id      string
		field   string
		value   string
		wantErr string
	}{
		{name: "status", id: "ledger.token.mint", field: "status", value: "verified"},
		{name: "timeout", id: "ledger.token.mint", field: "timeout", value: "45s"},
		{name: "error codes", id: "ledger.token.mint", field: "errorCodes", value: "INVALID_INPUT, NOT_FOUND"},
		{name: "bad timeout", id: "ledger.token.mint", field: "timeout", value: "soon", wantErr: "invalid timeout"},
		{name: "bad retries", id: "ledger.token.mint", field: "retries", value: "many", wantErr: "invalid retries"},
		{name: "unknown field", id: "ledger.token.mint", field: "owner", value: "x", wantErr: "unknown field"},
		{name: "unknown activity", id: "ledger.token.melt", field: "status", value: "x", wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := updateActivity(tt.id, tt.field, tt.value)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	reg, err := registry.LoadRegistry(registryPath)
	require.NoError(t, err)
	mint, ok := reg.Find("mint-tokens")
	require.True(t, ok)
	assert.Equal(t, "verified", mint.ImplementationStatus)
	assert.Equal(t, "45s", mint.Timeout)
	assert.Equal(t, []string{"INVALID_INPUT", "NOT_FOUND"}, mint.ErrorCodes)
}

func TestValidateRegistry_UnknownErrorCode(t *testing.T) {
	useTempRegistry(t)

	bad := freezeHolding()
	bad.ErrorCodes = []string{"FROZEN"}
	require.NoError(t, addActivity(bad))

	assert.ErrorContains(t, validateRegistry(), "unknown error code FROZEN")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitList(" A, ,B "))
	assert.Equal(t, []string{}, splitList(""))
}
