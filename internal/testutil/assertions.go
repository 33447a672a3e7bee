package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// AssertJSONResponse decodes the response body into v.
func AssertJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	require.NoError(t, json.Unmarshal(body, v), "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse checks the status and the code of a JSON error body.
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	var errResp struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	}
	require.NoError(t, json.Unmarshal(body, &errResp), "error body is not JSON: %s", string(body))
	assert.Equal(t, expectedCode, errResp.Code, "error code mismatch")
	assert.NotEmpty(t, errResp.Message)
}

// AssertCardOwner reloads the card and checks who holds it.
func AssertCardOwner(t *testing.T, db *gorm.DB, cardID, ownerID uuid.UUID) {
	t.Helper()

	var card domain.Card
	require.NoError(t, db.First(&card, "id = ?", cardID).Error)
	assert.Equal(t, ownerID, card.OwnerID, "card %s has the wrong owner", cardID)
}

// AssertBattleStatus reloads the battle and checks its persisted status.
func AssertBattleStatus(t *testing.T, db *gorm.DB, battleID uuid.UUID, want domain.BattleStatus) {
	t.Helper()

	var battle domain.BattleInstance
	require.NoError(t, db.First(&battle, "id = ?", battleID).Error)
	assert.Equal(t, want, battle.Status)
}

// AssertResultCount checks how many results were recorded for a battle.
func AssertResultCount(t *testing.T, db *gorm.DB, battleID uuid.UUID, want int64) {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&domain.BattleResult{}).Where("battle_id = ?", battleID).Count(&n).Error)
	assert.Equal(t, want, n)
}
