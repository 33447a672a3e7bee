package realtime_test

import (
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_CurrentVersion(t *testing.T) {
	player := uuid.New()
	in := realtime.Event{
		Name:       realtime.EventCardSelected,
		BattleID:   uuid.New(),
		Status:     domain.BattleStatusActive,
		PlayerID:   &player,
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := realtime.Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v":2`)

	out, err := realtime.Decode(data)
	require.NoError(t, err)
	in.Version = realtime.SchemaVersion
	assert.Equal(t, in, out)
}

func TestDecode_MigratesLegacyShape(t *testing.T) {
	battleID, userID := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		payload    string
		wantStatus domain.BattleStatus
		wantPlayer bool
	}{
		{
			name:       "newStatus field",
			payload:    `{"event":"battle_status_changed","battleId":"` + battleID.String() + `","newStatus":"cards_revealed","timestamp":1700000000000}`,
			wantStatus: domain.BattleStatusCardsRevealed,
		},
		{
			name:       "status field with explicit v1",
			payload:    `{"v":1,"event":"card_selected","battleId":"` + battleID.String() + `","status":"active","userId":"` + userID.String() + `"}`,
			wantStatus: domain.BattleStatusActive,
			wantPlayer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := realtime.Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, realtime.SchemaVersion, e.Version)
			assert.Equal(t, battleID, e.BattleID)
			assert.Equal(t, tt.wantStatus, e.Status)
			if tt.wantPlayer {
				require.NotNil(t, e.PlayerID)
				assert.Equal(t, userID, *e.PlayerID)
			} else {
				assert.Nil(t, e.PlayerID)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := realtime.Decode([]byte(`{"v":9,"name":"card_selected"}`))
	assert.ErrorIs(t, err, realtime.ErrUnsupportedVersion)

	_, err = realtime.Decode([]byte(`{"event":"card_selected","battleId":"not-a-uuid"}`))
	assert.Error(t, err)

	_, err = realtime.Decode([]byte(`not json`))
	assert.Error(t, err)
}
