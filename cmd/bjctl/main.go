// Command bjctl plays blackjack against the API from a terminal. It holds
// the player's x25519 key locally and decrypts the player's cards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bjctl",
		Short:         "confidential blackjack client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("api", envOr("BJ_API_URL", "http://localhost:8080"), "API base url")
	cmd.PersistentFlags().String("token", os.Getenv("BJ_TOKEN"), "player bearer token")
	cmd.PersistentFlags().String("key", envOr("BJ_KEY_FILE", "player.key"), "player key file")

	cmd.AddCommand(
		KeygenCmd(),
		TokenCmd(),
		BalanceCmd(),
		BeginCmd(),
		StepCmd("deal", "retry the deal of a game"),
		StepCmd("hit", "draw a card"),
		StepCmd("double", "double down"),
		StepCmd("stand", "stand"),
		StepCmd("resolve", "settle the game"),
		DealerCmd(),
		ShowCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
