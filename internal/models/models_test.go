package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"casino-backend/internal/confidential"
	"casino-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *models.GameSession {
	result := uint8(3)
	return &models.GameSession{
		ID:              models.GenerateGameID(),
		UserID:          123456789,
		PlayerKey:       confidential.PublicKey{7},
		Deck:            [3]confidential.Ciphertext{{1}, {2}, {3}},
		DeckNonce:       confidential.NonceFromUint64(10),
		PlayerHand:      confidential.Ciphertext{4},
		PlayerHandNonce: confidential.NonceFromUint64(11),
		DealerHand:      confidential.Ciphertext{5},
		DealerHandNonce: confidential.NonceFromUint64(12),
		PlayerHandSize:  3,
		DealerHandSize:  2,
		State:           models.StateResolved,
		PlayerHasStood:  true,
		BetAmount:       1000,
		Result:          &result,
	}
}

func TestModels(t *testing.T) {
	session := sampleSession()
	if !strings.HasPrefix(session.ID, "game_") {
		t.Errorf("unexpected game id %q", session.ID)
	}
	assert.Equal(t, 5, session.DealtCards())

	req := &models.BeginGameRequest{BetAmount: 50, PlayerKey: strings.Repeat("ab", 32)}
	assert.NoError(t, req.Validate(1, 10000))

	assert.Error(t, (&models.BeginGameRequest{BetAmount: 0, PlayerKey: req.PlayerKey}).Validate(1, 10000))
	assert.Error(t, (&models.BeginGameRequest{BetAmount: 20000, PlayerKey: req.PlayerKey}).Validate(1, 10000))
	assert.Error(t, (&models.BeginGameRequest{BetAmount: 50, PlayerKey: "zz"}).Validate(1, 10000))
}

func TestRecordLayout(t *testing.T) {
	s := sampleSession()
	rec := s.Record()
	require.Len(t, rec, models.RecordSize)

	assert.Equal(t, byte(1), rec[models.RecordDeckOffset])
	assert.Equal(t, byte(3), rec[models.RecordDeckOffset+64])
	assert.Equal(t, byte(4), rec[models.RecordPlayerHandOffset])
	assert.Equal(t, byte(5), rec[models.RecordDealerHandOffset])
	assert.Equal(t, models.RecordDeckOffset+models.RecordDeckLength, models.RecordPlayerHandOffset)

	back, err := models.ParseRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, s.Deck, back.Deck)
	assert.Equal(t, s.PlayerHand, back.PlayerHand)
	assert.Equal(t, s.DealerHand, back.DealerHand)
	assert.Equal(t, s.PlayerHandNonce, back.PlayerHandNonce)
	assert.Equal(t, s.State, back.State)
	assert.Equal(t, s.BetAmount, back.BetAmount)
	assert.Equal(t, *s.Result, *back.Result)
	assert.Equal(t, s.PlayerKey, back.PlayerKey)
	assert.True(t, back.PlayerHasStood)

	s.Result = nil
	back, err = models.ParseRecord(s.Record())
	require.NoError(t, err)
	assert.Nil(t, back.Result)

	_, err = models.ParseRecord(rec[:10])
	assert.Error(t, err)
}

func TestGameStateJSON(t *testing.T) {
	b, err := json.Marshal(models.StateDealerTurn)
	require.NoError(t, err)
	assert.Equal(t, `"dealer_turn"`, string(b))

	var st models.GameState
	require.NoError(t, json.Unmarshal(b, &st))
	assert.Equal(t, models.StateDealerTurn, st)
	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &st))
}

func TestSessionJSONRoundTrip(t *testing.T) {
	s := sampleSession()
	s.Pending = &models.PendingStep{Step: models.StepHit, Circuit: confidential.CircuitHit, Handle: "h"}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back models.GameSession
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, &back)
}

func TestCloneIsDeep(t *testing.T) {
	s := sampleSession()
	s.UpCard = &confidential.EncryptedField{Ciphertexts: []confidential.Ciphertext{{9}}}
	c := s.Clone()
	c.UpCard.Ciphertexts[0][0] = 1
	*c.Result = 0
	assert.Equal(t, byte(9), s.UpCard.Ciphertexts[0][0])
	assert.Equal(t, uint8(3), *s.Result)
}

func TestViewHidesClusterFields(t *testing.T) {
	s := sampleSession()
	v := s.View()
	require.NotNil(t, v.PlayerHand)
	assert.Equal(t, s.PlayerKey, v.PlayerHand.Recipient)
	assert.Equal(t, "10.00", v.BetAmount)
	assert.Equal(t, "resolved", v.State)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dealer_hand\"")
	assert.NotContains(t, string(data), "deck")
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "0.00", models.FormatAmount(0))
	assert.Equal(t, "99.50", models.FormatAmount(9950))
	assert.Equal(t, "-1.05", models.FormatAmount(-105))

	v, err := models.ParseAmount("12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), v)

	_, err = models.ParseAmount("1.005")
	assert.Error(t, err)
	_, err = models.ParseAmount("abc")
	assert.Error(t, err)
}
