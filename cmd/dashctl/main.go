// Package main provides the dashboard CLI entry point.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/tunebox-bot/tunebox/internal/api/dashboard"
)

var (
	app    = kingpin.New("dashctl", "Tunebox dashboard client")
	server = app.Flag("server", "Dashboard address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set DASHBOARD_ADMIN_TOKEN env)").Envar("DASHBOARD_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show stats and live sessions")

	// play command
	playCmd   = app.Command("play", "Queue a track in a guild")
	playGuild = playCmd.Arg("guild-id", "Guild ID").Required().String()
	playQuery = playCmd.Arg("query", "URL or search text").Required().String()

	// pause command
	pauseCmd   = app.Command("pause", "Pause playback in a guild")
	pauseGuild = pauseCmd.Arg("guild-id", "Guild ID").Required().String()

	// resume command
	resumeCmd   = app.Command("resume", "Resume playback in a guild")
	resumeGuild = resumeCmd.Arg("guild-id", "Guild ID").Required().String()

	// skip command
	skipCmd   = app.Command("skip", "Skip the current track in a guild")
	skipGuild = skipCmd.Arg("guild-id", "Guild ID").Required().String()

	// stop command
	stopCmd   = app.Command("stop", "Stop playback and clear the queue")
	stopGuild = stopCmd.Arg("guild-id", "Guild ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or DASHBOARD_ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	switch command {
	case statusCmd.FullCommand():
		status(client)
	case playCmd.FullCommand():
		control(client, *playGuild, "play", *playQuery)
	case pauseCmd.FullCommand():
		control(client, *pauseGuild, "pause", "")
	case resumeCmd.FullCommand():
		control(client, *resumeGuild, "resume", "")
	case skipCmd.FullCommand():
		control(client, *skipGuild, "skip", "")
	case stopCmd.FullCommand():
		control(client, *stopGuild, "stop", "")
	}
}

func status(client *http.Client) {
	req, err := http.NewRequest(http.MethodGet, *server+"/api/stats", nil)
	if err != nil {
		fail(err)
	}
	req.Header.Set(dashboard.AdminTokenHeader, *token)

	resp, err := client.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: %s\n%s\n", resp.Status, body)
		os.Exit(1)
	}

	var payload struct {
		Stats struct {
			TotalPlays    int            `json:"total_plays"`
			PlaysPerGuild map[string]int `json:"plays_per_guild"`
			TopTitles     []struct {
				Title string `json:"title"`
				Count int    `json:"count"`
			} `json:"top_titles"`
		} `json:"stats"`
		Sessions []struct {
			GuildID      string  `json:"guild_id"`
			Status       string  `json:"status"`
			CurrentTitle string  `json:"current_title"`
			QueueLength  int     `json:"queue_length"`
			Volume       float64 `json:"volume"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		fail(err)
	}

	fmt.Println("\n=== TUNEBOX STATUS ===")
	fmt.Printf("Total Plays: %d\n", payload.Stats.TotalPlays)

	if len(payload.Stats.TopTitles) > 0 {
		fmt.Println("\nTop Tracks:")
		for i, t := range payload.Stats.TopTitles {
			fmt.Printf("  %d. %s (%d plays)\n", i+1, t.Title, t.Count)
		}
	}

	fmt.Printf("\nLive Sessions (%d):\n", len(payload.Sessions))
	for _, s := range payload.Sessions {
		line := fmt.Sprintf("  %s: %s, %d queued, volume %.0f%%", s.GuildID, s.Status, s.QueueLength, s.Volume*100)
		if s.CurrentTitle != "" {
			line += fmt.Sprintf(", playing %q", s.CurrentTitle)
		}
		fmt.Println(line)
	}
	fmt.Println()
}

func control(client *http.Client, guildID, op, query string) {
	body, err := json.Marshal(map[string]string{
		"guild_id": guildID,
		"op":       op,
		"query":    query,
	})
	if err != nil {
		fail(err)
	}

	req, err := http.NewRequest(http.MethodPost, *server+"/api/control", bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	req.Header.Set(dashboard.AdminTokenHeader, *token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(respBody, &payload)

	if resp.StatusCode != http.StatusOK {
		if payload.Error != "" {
			fmt.Printf("Failed: %s\n", payload.Error)
		} else {
			fmt.Printf("Error: %s\n", resp.Status)
		}
		os.Exit(1)
	}
	fmt.Println(payload.Message)
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}
