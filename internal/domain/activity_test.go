package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActivityDetails(t *testing.T) {
	t.Run("rebuilds the typed payload from stored JSON", func(t *testing.T) {
		original := StatusChangedDetails{
			OldStatus: TicketStatusNew,
			NewStatus: TicketStatusSolved,
		}
		data, err := json.Marshal(original)
		require.NoError(t, err)

		decoded, err := DecodeActivityDetails(ActionStatusChanged, data)
		require.NoError(t, err)
		require.IsType(t, &StatusChangedDetails{}, decoded)
		assert.Equal(t, original, *decoded.(*StatusChangedDetails))
		assert.Equal(t, ActionStatusChanged, decoded.Action())
	})

	t.Run("keeps nil pointer fields nil", func(t *testing.T) {
		agentID := "agent-1"
		original := AssigneeChangedDetails{NewAssigneeID: &agentID}
		data, err := json.Marshal(original)
		require.NoError(t, err)

		decoded, err := DecodeActivityDetails(ActionAssigneeChanged, data)
		require.NoError(t, err)
		payload := decoded.(*AssigneeChangedDetails)
		assert.Nil(t, payload.OldAssigneeID)
		require.NotNil(t, payload.NewAssigneeID)
		assert.Equal(t, agentID, *payload.NewAssigneeID)
	})

	t.Run("unknown action codes are an error", func(t *testing.T) {
		_, err := DecodeActivityDetails(ActivityAction("ticket_teleported"), []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("empty data yields the zero payload", func(t *testing.T) {
		decoded, err := DecodeActivityDetails(ActionChatStarted, nil)
		require.NoError(t, err)
		assert.Equal(t, &ChatStartedDetails{}, decoded)
	})

	t.Run("malformed data is an error", func(t *testing.T) {
		_, err := DecodeActivityDetails(ActionChatEnded, []byte(`{"resolved":`))
		assert.Error(t, err)
	})
}
