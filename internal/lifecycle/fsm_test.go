package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.SyncLogStatus
		to    types.SyncLogStatus
		valid bool
	}{
		{types.LogReceived, types.LogIgnored, true},
		{types.LogReceived, types.LogFetched, true},
		{types.LogReceived, types.LogFetchError, true},
		{types.LogReceived, types.LogLockError, true},
		{types.LogReceived, types.LogADOCreated, false},
		{types.LogFetched, types.LogSkippedStatusCheck, true},
		{types.LogFetched, types.LogProcessingRequired, true},
		{types.LogFetched, types.LogADOCreated, false},
		{types.LogProcessingRequired, types.LogDryRun, true},
		{types.LogProcessingRequired, types.LogADOCreated, true},
		{types.LogProcessingRequired, types.LogADOUpdated, true},
		{types.LogProcessingRequired, types.LogADOError, true},
		{types.LogProcessingRequired, types.LogMappingUpdateError, true},
		{types.LogProcessingRequired, types.LogFetched, false},
		{types.LogADOCreated, types.LogADOUpdated, false},
		{types.LogSkippedStatusCheck, types.LogProcessingRequired, false},
		{types.LogIgnored, types.LogFetched, false},
		{"bogus", types.LogFetched, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []types.SyncLogStatus{
		types.LogIgnored, types.LogFetchError, types.LogLockError, types.LogSkippedStatusCheck,
		types.LogDryRun, types.LogADOCreated, types.LogADOUpdated, types.LogADOError, types.LogMappingUpdateError,
	} {
		assert.True(t, IsTerminal(s), s)
	}
	assert.False(t, IsTerminal(types.LogReceived))
	assert.False(t, IsTerminal(types.LogFetched))
	assert.False(t, IsTerminal(types.LogProcessingRequired))
	assert.False(t, IsTerminal("bogus"))
}

func TestIsError(t *testing.T) {
	assert.True(t, IsError(types.LogADOError))
	assert.True(t, IsError(types.LogMappingUpdateError))
	assert.True(t, IsError(types.LogFetchError))
	assert.False(t, IsError(types.LogSkippedStatusCheck))
	assert.False(t, IsError(types.LogADOCreated))
}
