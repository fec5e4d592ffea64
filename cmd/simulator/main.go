package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
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
	case "match":
		matchCmd(apiURL, args)
	case "lobby":
		lobbyCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Match Simulator - Development tool for driving scripted games

USAGE:
  simulator <command> [options]

COMMANDS:
  match     Queue two players, connect both, and play a scripted game
  lobby     Create a lobby, join it, and play a scripted game
  help      Show this help message

ENVIRONMENT:
  API_URL   Game server URL (default: http://localhost:8080)

EXAMPLES:
  # Run a full matchmade blitz game ending in checkmate
  simulator match

  # Rapid game where black resigns after the scripted opening
  simulator match --mode=rapid --finish=resign

  # Unrated lobby game with the creator playing white
  simulator lobby --unrated`)
}

// Scholar's mate, the shortest script that exercises captures and a
// checkmate declaration.
var scriptedMoves = []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"}

func matchCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	mode := fs.String("mode", "blitz", "Game mode (bullet, blitz, rapid, classical)")
	finish := fs.String("finish", "checkmate", "How the game ends (checkmate, resign)")
	fs.Parse(args)

	client := NewAPIClient(apiURL)
	nonce := time.Now().UnixNano() % 100000
	alice := Player{PlayerID: fmt.Sprintf("sim-alice-%d", nonce), DisplayName: "Alice", Rating: 1500}
	bob := Player{PlayerID: fmt.Sprintf("sim-bob-%d", nonce), DisplayName: "Bob", Rating: 1500}

	fmt.Println("=== Match Simulator: Matchmaking Flow ===")
	fmt.Println()

	fmt.Print("Queueing Alice... ")
	first, err := client.JoinQueue(alice, *mode)
	if err != nil {
		fail(err)
	}
	fmt.Printf("OK (position %d)\n", first.Position)

	fmt.Print("Queueing Bob... ")
	second, err := client.JoinQueue(bob, *mode)
	if err != nil {
		fail(err)
	}
	if !second.Matched {
		fail(fmt.Errorf("expected Bob to match immediately, got position %d", second.Position))
	}
	fmt.Printf("OK (matched, game %s, Bob plays %s)\n", second.Match.GameID, second.Match.Color)

	// Alice's seat waits as a pending match; rejoining collects it.
	fmt.Print("Collecting Alice's pending match... ")
	reclaim, err := client.JoinQueue(alice, *mode)
	if err != nil {
		fail(err)
	}
	if !reclaim.Matched {
		fail(fmt.Errorf("expected a pending match for Alice"))
	}
	fmt.Printf("OK (Alice plays %s)\n", reclaim.Match.Color)

	runGame(seatAssignment{*reclaim.Match, alice.DisplayName}, seatAssignment{*second.Match, bob.DisplayName}, *finish)
}

func lobbyCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("lobby", flag.ExitOnError)
	mode := fs.String("mode", "blitz", "Game mode (bullet, blitz, rapid, classical)")
	finish := fs.String("finish", "checkmate", "How the game ends (checkmate, resign)")
	unrated := fs.Bool("unrated", false, "Play without rating changes")
	fs.Parse(args)

	client := NewAPIClient(apiURL)
	nonce := time.Now().UnixNano() % 100000
	host := Player{PlayerID: fmt.Sprintf("sim-host-%d", nonce), DisplayName: "Host", Rating: 1500}
	guest := Player{PlayerID: fmt.Sprintf("sim-guest-%d", nonce), DisplayName: "Guest", Rating: 1500}

	fmt.Println("=== Match Simulator: Lobby Flow ===")
	fmt.Println()

	fmt.Print("Creating lobby... ")
	lobby, err := client.CreateLobby(host, LobbySettings{
		PlayerColor: "white",
		GameMode:    *mode,
		Unrated:     *unrated,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("OK (lobby %s)\n", lobby.LobbyID)

	// The creator's seat arrives over their lobby websocket once someone
	// joins, so listen before the guest comes in.
	fmt.Print("Attaching creator's lobby channel... ")
	listener, err := ListenLobby(wsBase(apiURL)+"/api/v1/lobbies/"+lobby.LobbyID+"/ws?playerId="+host.PlayerID, 15*time.Second)
	if err != nil {
		fail(err)
	}
	fmt.Println("OK")

	fmt.Print("Joining as guest... ")
	guestSeat, err := client.JoinLobby(lobby.LobbyID, guest)
	if err != nil {
		fail(err)
	}
	fmt.Printf("OK (game %s, guest plays %s)\n", guestSeat.RoomID, guestSeat.Color)

	fmt.Print("Waiting for creator's seat... ")
	hostSeat, err := listener.WaitForMatch()
	if err != nil {
		fail(err)
	}
	fmt.Printf("OK (host plays %s)\n", hostSeat.Color)

	runGame(
		seatAssignment{MatchAssignment{GameID: hostSeat.RoomID, Color: hostSeat.Color, ConnectionURL: hostSeat.URL}, host.DisplayName},
		seatAssignment{MatchAssignment{GameID: guestSeat.RoomID, Color: guestSeat.Color, ConnectionURL: guestSeat.URL}, guest.DisplayName},
		*finish,
	)
}

// wsBase turns the HTTP API URL into its websocket counterpart
func wsBase(apiURL string) string {
	if rest, ok := strings.CutPrefix(apiURL, "https://"); ok {
		return "wss://" + rest
	}
	return "ws://" + strings.TrimPrefix(apiURL, "http://")
}

type seatAssignment struct {
	MatchAssignment
	name string
}

func runGame(white, black seatAssignment, finish string) {
	if white.Color != "white" {
		white, black = black, white
	}

	fmt.Println()
	fmt.Print("Connecting both players... ")
	whitePlayer, err := Connect(white.name, white.ConnectionURL)
	if err != nil {
		fail(err)
	}
	defer whitePlayer.Close()

	blackPlayer, err := Connect(black.name, black.ConnectionURL)
	if err != nil {
		fail(err)
	}
	defer blackPlayer.Close()
	fmt.Println("OK")

	fmt.Print("Waiting for game start... ")
	if err := whitePlayer.WaitForStart(10 * time.Second); err != nil {
		fail(err)
	}
	fmt.Println("OK")

	fmt.Println()
	fmt.Println("Playing scripted moves:")
	for i, uci := range scriptedMoves {
		mover := whitePlayer
		if i%2 == 1 {
			mover = blackPlayer
		}
		if err := mover.Move(uci); err != nil {
			fail(err)
		}
		fmt.Printf("  %d. %s\n", i+1, uci)
		time.Sleep(300 * time.Millisecond)
	}

	fmt.Println()
	switch finish {
	case "resign":
		fmt.Print("Black resigns... ")
		if err := blackPlayer.Resign(); err != nil {
			fail(err)
		}
	default:
		fmt.Print("White declares checkmate... ")
		if err := whitePlayer.DeclareEnd("white_win", "checkmate"); err != nil {
			fail(err)
		}
	}
	fmt.Println("OK")

	ended, err := whitePlayer.WaitForEnd(10 * time.Second)
	if err != nil {
		fail(err)
	}
	if _, err := blackPlayer.WaitForEnd(10 * time.Second); err != nil {
		fail(err)
	}

	var summary struct {
		Result     string `json:"result"`
		Reason     string `json:"reason"`
		EloChanges map[string]struct {
			Change    int `json:"change"`
			NewRating int `json:"newRating"`
		} `json:"eloChanges"`
	}
	json.Unmarshal(ended.Payload, &summary)

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Printf("  GAME OVER: %s (%s)\n", summary.Result, summary.Reason)
	for color, change := range summary.EloChanges {
		fmt.Printf("  %s: %+d -> %d\n", color, change.Change, change.NewRating)
	}
	fmt.Printf("  clock updates seen: %d\n", whitePlayer.FrameCount("clock_update"))
	fmt.Println("=========================================")
}

func fail(err error) {
	fmt.Printf("FAILED\n  Error: %v\n", err)
	os.Exit(1)
}
