package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"casino-backend/internal/cards"
	"casino-backend/internal/config"
	"casino-backend/internal/confidential"
	"casino-backend/internal/models"
	"casino-backend/internal/services"

	"github.com/spf13/cobra"
)

func KeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a player key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("key")
			force, _ := cmd.Flags().GetBool("force")
			kp, err := writeKey(path, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\npublic key %s\n", path, kp.Public)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing key file")
	return cmd
}

// TokenCmd mints a player token with the server's JWT_SECRET. Meant for
// development setups that share the secret.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development player token from JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				return fmt.Errorf("no secret: pass --secret or set JWT_SECRET")
			}
			token, err := services.NewJWTService(&config.Config{JWTSecret: secret}).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64P("user", "u", 0, "player id")
	cmd.MarkFlagRequired("user")
	cmd.Flags().String("secret", envOr("JWT_SECRET", ""), "JWT signing secret")
	return cmd
}

func BalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			var resp struct {
				Wallet models.BalanceResponse `json:"wallet"`
			}
			if err := c.do(cmd.Context(), http.MethodGet, "/api/user/balance", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance  %s\nwagered  %s\nwon      %s\n",
				resp.Wallet.Balance, resp.Wallet.TotalWagered, resp.Wallet.TotalWon)
			return nil
		},
	}
}

func BeginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "begin",
		Short: "Start a game and request the deal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			betStr, _ := cmd.Flags().GetString("bet")
			bet, err := models.ParseAmount(betStr)
			if err != nil {
				return err
			}
			keyPath, _ := cmd.Flags().GetString("key")
			kp, err := readKey(keyPath)
			if err != nil {
				return err
			}
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			var resp models.StepResponse
			err = c.do(cmd.Context(), http.MethodPost, "/api/blackjack/games", models.BeginGameRequest{
				BetAmount: bet,
				PlayerKey: kp.Public.String(),
			}, &resp)
			if err != nil {
				return err
			}
			printStep(cmd.OutOrStdout(), &resp)
			return nil
		},
	}
	cmd.Flags().StringP("bet", "b", "1.00", "stake, e.g. 2.50")
	return cmd
}

func StepCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <game-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			var resp models.StepResponse
			if err := c.do(cmd.Context(), http.MethodPost, "/api/blackjack/games/"+args[0]+"/"+name, nil, &resp); err != nil {
				return err
			}
			printStep(cmd.OutOrStdout(), &resp)
			return nil
		},
	}
}

func DealerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dealer <game-id>",
		Short: "Let the dealer play out the hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, _ := cmd.Flags().GetString("nonce")
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			var resp models.StepResponse
			err = c.do(cmd.Context(), http.MethodPost, "/api/blackjack/games/"+args[0]+"/dealer",
				models.DealerPlayRequest{ClientNonce: nonce}, &resp)
			if err != nil {
				return err
			}
			printStep(cmd.OutOrStdout(), &resp)
			return nil
		},
	}
	cmd.Flags().String("nonce", "", "hex nonce for the revealed dealer hand (random when empty)")
	return cmd
}

func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <game-id>",
		Short: "Show a game and decrypt the cards addressed to the player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("key")
			wait, _ := cmd.Flags().GetDuration("wait")
			kp, err := readKey(keyPath)
			if err != nil {
				return err
			}
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}

			var ck models.ClusterKeyResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/api/blackjack/cluster-key", nil, &ck); err != nil {
				return err
			}
			view, err := fetchGame(cmd, c, args[0], wait)
			if err != nil {
				return err
			}
			cipher, err := confidential.NewCipher(kp.Private, ck.PublicKey)
			if err != nil {
				return err
			}
			return renderGame(cmd.OutOrStdout(), view, cipher)
		},
	}
	cmd.Flags().Duration("wait", 0, "poll until no step is pending, up to this long")
	return cmd
}

func fetchGame(cmd *cobra.Command, c *apiClient, id string, wait time.Duration) (*models.GameView, error) {
	deadline := time.Now().Add(wait)
	for {
		var view models.GameView
		if err := c.do(cmd.Context(), http.MethodGet, "/api/blackjack/games/"+id, nil, &view); err != nil {
			return nil, err
		}
		if view.Pending == nil || time.Now().After(deadline) {
			return &view, nil
		}
		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func printStep(w io.Writer, resp *models.StepResponse) {
	fmt.Fprintf(w, "game    %s\nstep    %s (pending %s)\nstate   %s\n", resp.GameID, resp.Step, resp.Handle, resp.State)
}

var outcomeNames = map[uint8]string{
	confidential.OutcomePlayerBust:   "player bust",
	confidential.OutcomeDealerBust:   "dealer bust",
	confidential.OutcomePlayerHigher: "player wins",
	confidential.OutcomeDealerHigher: "dealer wins",
	confidential.OutcomePush:         "push",
}

func renderGame(w io.Writer, view *models.GameView, cipher *confidential.Cipher) error {
	fmt.Fprintf(w, "game    %s\nstate   %s\nbet     %s\n", view.ID, view.State, view.BetAmount)

	if view.PlayerHand != nil {
		hand, err := cipher.OpenHand(*view.PlayerHand)
		if err != nil {
			return fmt.Errorf("failed to open player hand: %w", err)
		}
		held := heldCards(hand)
		fmt.Fprintf(w, "player  %s  (%d)\n", joinCards(held), cards.Value(hand.Cards(), len(held)))
	}
	if view.DealerReveal != nil {
		hand, err := cipher.OpenHand(*view.DealerReveal)
		if err != nil {
			return fmt.Errorf("failed to open dealer hand: %w", err)
		}
		held := heldCards(hand)
		fmt.Fprintf(w, "dealer  %s  (%d)\n", joinCards(held), cards.Value(hand.Cards(), len(held)))
	} else if view.UpCard != nil {
		up, err := cipher.OpenHand(*view.UpCard)
		if err != nil {
			return fmt.Errorf("failed to open up card: %w", err)
		}
		fmt.Fprintf(w, "dealer  %s ??\n", joinCards(heldCards(up)))
	}

	if view.Pending != nil {
		fmt.Fprintf(w, "pending %s (%s)\n", view.Pending.Step, view.Pending.Handle)
	}
	if view.LastError != "" {
		fmt.Fprintf(w, "error   %s\n", view.LastError)
	}
	if view.Result != nil {
		fmt.Fprintf(w, "result  %s\npayout  %s\n", outcomeNames[*view.Result], view.Payout)
	}
	return nil
}

func heldCards(h cards.PackedHand) []cards.Card {
	var out []cards.Card
	for _, c := range h.Cards() {
		if c.IsEmpty() {
			break
		}
		out = append(out, c)
	}
	return out
}

func joinCards(cs []cards.Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
