package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "battle":
		battleCmd(apiURL, args)
	case "challenge":
		challengeCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Battle Simulator - Development tool for exercising card battles

USAGE:
  simulator <command> [options]

COMMANDS:
  battle     Register two players, open packs, and play a battle to completion
  challenge  Register a bot with a pack and challenge an existing player
  help       Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Play a full battle, waiting for the server's reveal countdown
  simulator battle

  # Play a full battle, skipping the countdown
  simulator battle --trigger

  # Challenge your own account so you can accept it in a client
  simulator challenge --opponent=<your user id>`)
}

func battleCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("battle", flag.ExitOnError)
	trigger := fs.Bool("trigger", false, "Trigger resolution instead of waiting for the countdown")
	wait := fs.Duration("wait", 30*time.Second, "How long to wait for the countdown to resolve the battle")
	fs.Parse(args)

	client := NewAPIClient(apiURL)

	fmt.Println("=== Battle Simulator: Full Flow ===")
	fmt.Println()

	challenger, challengerToken := mustRegister(client, "Challenger")
	opponent, opponentToken := mustRegister(client, "Opponent")

	challengerCard := mustPickCard(client, challenger, challengerToken)
	opponentCard := mustPickCard(client, opponent, opponentToken)

	fmt.Println()
	fmt.Print("Creating challenge... ")
	battle, err := client.Challenge(challengerToken, opponent.ID)
	exitOn(err)
	fmt.Printf("OK (battle: %s)\n", battle.ID)

	fmt.Print("Accepting challenge... ")
	_, err = client.Accept(opponentToken, battle.ID)
	exitOn(err)
	fmt.Println("OK")

	fmt.Printf("%s stakes %s... ", challenger.DisplayName, challengerCard.Name)
	_, err = client.SelectCard(challengerToken, battle.ID, challengerCard.ID)
	exitOn(err)
	fmt.Println("OK")

	fmt.Printf("%s stakes %s... ", opponent.DisplayName, opponentCard.Name)
	revealed, err := client.SelectCard(opponentToken, battle.ID, opponentCard.ID)
	exitOn(err)
	fmt.Printf("OK (revealed: %t)\n", revealed)

	var result *Result
	if *trigger {
		fmt.Print("Triggering resolution... ")
		result, err = client.Resolve(challengerToken, battle.ID)
		exitOn(err)
		fmt.Println("OK")
	} else {
		fmt.Print("Waiting for reveal countdown")
		result = waitForResult(client, challengerToken, battle.ID, *wait)
	}

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Printf("  Policy:  %s\n", result.Policy)
	fmt.Printf("  Score:   %d - %d\n", result.ScoreChallenger, result.ScoreOpponent)
	fmt.Printf("  Outcome: %s\n", result.Explanation)
	switch {
	case result.WinnerID == nil:
		fmt.Println("  Draw, no card changes hands")
	case *result.WinnerID == challenger.ID:
		fmt.Printf("  %s wins %s\n", challenger.DisplayName, opponentCard.Name)
	default:
		fmt.Printf("  %s wins %s\n", opponent.DisplayName, challengerCard.Name)
	}
	fmt.Println("=========================================")
}

func challengeCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("challenge", flag.ExitOnError)
	opponentID := fs.String("opponent", "", "User ID to challenge (required)")
	fs.Parse(args)

	if *opponentID == "" {
		fmt.Println("Error: --opponent is required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	bot, token := mustRegister(client, "Bot")
	card := mustPickCard(client, bot, token)

	battle, err := client.Challenge(token, *opponentID)
	exitOn(err)

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Printf("  Battle %s is pending\n", battle.ID)
	fmt.Printf("  Bot will stake %s (%s, %d total)\n", card.Name, card.Archetype, card.Attributes.Sum())
	fmt.Println("  Accept it from your client, then pick a card")
	fmt.Println("=========================================")
}

func mustRegister(client *APIClient, name string) (*User, string) {
	fmt.Printf("Registering %s... ", name)
	user, token, err := client.RegisterUser(name)
	exitOn(err)
	fmt.Printf("OK (user: %s)\n", user.DisplayName)
	return user, token
}

// mustPickCard opens a pack for user and returns its strongest humanoid.
func mustPickCard(client *APIClient, user *User, token string) Card {
	if _, err := client.OpenPack(token); err != nil {
		exitOn(err)
	}
	cards, err := client.ListCards(token)
	exitOn(err)

	var best *Card
	for i := range cards {
		if cards[i].CardType != "humanoid" {
			continue
		}
		if best == nil || cards[i].Attributes.Sum() > best.Attributes.Sum() {
			best = &cards[i]
		}
	}
	if best == nil {
		exitOn(fmt.Errorf("%s has no humanoid cards", user.DisplayName))
	}
	fmt.Printf("  %s picks %s [%s %s, %d/%d/%d]\n", user.DisplayName, best.Name, best.Rarity, best.Archetype,
		best.Attributes.Str, best.Attributes.Dex, best.Attributes.Int)
	return *best
}

func waitForResult(client *APIClient, token, battleID string, timeout time.Duration) *Result {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		view, err := client.GetBattle(token, battleID)
		exitOn(err)
		if view.Battle.Status == "completed" && view.Result != nil {
			fmt.Println(" OK")
			return view.Result
		}
		fmt.Print(".")
		time.Sleep(time.Second)
	}
	fmt.Println(" TIMEOUT")
	os.Exit(1)
	return nil
}

func exitOn(err error) {
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
}
