package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"casino-backend/internal/cards"
	"casino-backend/internal/confidential"
	"casino-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.key")

	kp, err := writeKey(path, false)
	require.NoError(t, err)

	_, err = writeKey(path, false)
	assert.Error(t, err, "existing key must not be overwritten without force")

	loaded, err := readKey(path)
	require.NoError(t, err)
	assert.Equal(t, kp, loaded)
}

func sealHand(t *testing.T, cluster confidential.KeyPair, player confidential.PublicKey, nonce uint64, cs ...cards.Card) *confidential.EncryptedField {
	t.Helper()
	c, err := confidential.NewCipher(cluster.Private, player)
	require.NoError(t, err)
	f, err := c.SealField(player, confidential.NonceFromUint64(nonce), cards.MustPackHand(cs...).Block())
	require.NoError(t, err)
	return &f
}

func TestRenderGame(t *testing.T) {
	cluster, err := confidential.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	player, err := confidential.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	ace, nine, king := cards.Card(0), cards.Card(9), cards.Card(12)
	result := uint8(confidential.OutcomePlayerHigher)
	view := &models.GameView{
		ID:           "game_1",
		State:        models.StateResolved.String(),
		BetAmount:    "1.00",
		PlayerHand:   sealHand(t, cluster, player.Public, 1, ace, nine),
		UpCard:       sealHand(t, cluster, player.Public, 2, king),
		DealerReveal: sealHand(t, cluster, player.Public, 3, king, nine),
		Result:       &result,
		Payout:       "0.99",
	}

	playerCipher, err := confidential.NewCipher(player.Private, cluster.Public)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, renderGame(&out, view, playerCipher))
	text := out.String()
	assert.Contains(t, text, "player  "+ace.String()+" "+nine.String()+"  (20)")
	assert.Contains(t, text, "dealer  "+king.String()+" "+nine.String()+"  (19)")
	assert.Contains(t, text, "result  player wins")
	assert.Contains(t, text, "payout  0.99")
}

func TestBalanceCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/balance", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"wallet": models.BalanceResponse{Balance: "99.00", TotalWagered: "1.00", TotalWon: "0.00"},
		})
	}))
	defer srv.Close()

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"balance", "--api", srv.URL, "--token", "tok"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "balance  99.00")
}

func TestStepCommandReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/blackjack/games/game_1/hit", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "Step rejected", "details": "step already pending"})
	}))
	defer srv.Close()

	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"hit", "game_1", "--api", srv.URL, "--token", "tok"})
	err := root.Execute()
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, err.Error(), "step already pending")
}
