package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "twitch-vod",
		Short: "Twitch VOD CLI - Download manager for Twitch VODs",
		Long:  `A command-line interface for downloading Twitch VODs, including sub-only and partially muted videos.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(watchCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var downloadCmd = &cobra.Command{
	Use:   "download [vod-id]",
	Short: "Start a VOD download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		vodID := args[0]
		quality, _ := cmd.Flags().GetString("quality")
		format, _ := cmd.Flags().GetString("format")
		filename, _ := cmd.Flags().GetString("filename")
		chat, _ := cmd.Flags().GetBool("chat")
		clipStart, _ := cmd.Flags().GetFloat64("start")
		clipEnd, _ := cmd.Flags().GetFloat64("end")

		payload := map[string]interface{}{
			"vod_id": vodID,
		}
		if quality != "" {
			payload["quality"] = quality
		}
		if format != "" {
			payload["file_format"] = format
		}
		if filename != "" {
			payload["filename"] = filename
		}
		if chat {
			payload["include_chat"] = true
		}
		if clipStart > 0 {
			payload["clip_start"] = clipStart
		}
		if clipEnd > 0 {
			payload["clip_end"] = clipEnd
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Download started!\n")
		fmt.Printf("ID: %s\n", result["id"])
		fmt.Printf("Segments: %v\n", result["total_segments"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all downloads",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		state, _ := cmd.Flags().GetString("state")

		url := serverURL + "/api/v1/downloads"
		if state != "" {
			url += "?state=" + state
		}

		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var downloads []map[string]interface{}
		json.Unmarshal(body, &downloads)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVOD\tQUALITY\tSTATE\tPROGRESS")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v/%v\n",
				truncate(fmt.Sprint(d["id"]), 24),
				d["vod_id"],
				d["quality"],
				d["state"],
				d["completed_count"],
				d["total_segments"])
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/downloads/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Download Statistics:")
		fmt.Printf("  Active:    %v\n", stats["active"])
		fmt.Printf("  Paused:    %v\n", stats["paused"])
		fmt.Printf("  Completed: %v\n", stats["completed"])
		fmt.Printf("  Failed:    %v\n", stats["failed"])
		fmt.Printf("  Aborted:   %v\n", stats["aborted"])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Get(serverURL + "/api/v1/downloads/" + id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var download map[string]interface{}
		json.Unmarshal(body, &download)

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", download["id"])
		fmt.Printf("  VOD:      %s\n", download["vod_id"])
		fmt.Printf("  Quality:  %s\n", download["quality"])
		fmt.Printf("  State:    %s\n", download["state"])
		fmt.Printf("  Progress: %v/%v segments\n", download["completed_count"], download["total_segments"])
		fmt.Printf("  Blocked:  %v\n", download["copyright_blocked_count"])
		fmt.Printf("  Failed:   %v\n", download["failed_count"])
		if download["error_message"] != nil && download["error_message"] != "" {
			fmt.Printf("  Error:    %s\n", download["error_message"])
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+id+"/cancel", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		fmt.Println("Download cancelled successfully")
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+id+"/pause", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		fmt.Println("Download paused")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+id+"/resume", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		fmt.Println("Download resumed")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed download history",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/downloads/history")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var records []map[string]interface{}
		json.Unmarshal(body, &records)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VOD\tTITLE\tQUALITY\tFILE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r["vod_id"],
				truncate(fmt.Sprint(r["title"]), 40),
				r["quality"],
				r["file_path"])
		}
		w.Flush()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [vod-id]",
	Short: "Show VOD metadata",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/vod/" + args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var meta map[string]interface{}
		json.Unmarshal(body, &meta)
		pretty, _ := json.MarshalIndent(meta, "", "  ")
		fmt.Println(string(pretty))
	},
}

var playlistCmd = &cobra.Command{
	Use:   "playlist [vod-id]",
	Short: "Print the synthesized master playlist for a VOD",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/vod/" + args[0] + "/playlist.m3u8")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}
		fmt.Print(string(body))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live download progress",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws/progress"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var msg map[string]interface{}
				if err := json.Unmarshal(data, &msg); err != nil {
					continue
				}
				switch msg["action"] {
				case "downloadProgress":
					fmt.Printf("[%s] %v%% (%v/%v segments)\n",
						msg["download_id"], msg["percent"], msg["current"], msg["total"])
				case "downloadComplete":
					if msg["success"] == true {
						fmt.Printf("[%s] complete: %s\n", msg["download_id"], msg["file_path"])
					} else {
						fmt.Printf("[%s] failed: %s\n", msg["download_id"], msg["error"])
					}
				}
			}
		}()

		select {
		case <-done:
		case <-interrupt:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
		}
	},
}

func init() {
	downloadCmd.Flags().StringP("quality", "q", "", "Quality label (chunked, 720p60, ...)")
	downloadCmd.Flags().StringP("format", "f", "", "Output format (ts, mp4)")
	downloadCmd.Flags().StringP("filename", "o", "", "Output filename")
	downloadCmd.Flags().BoolP("chat", "c", false, "Also export the chat transcript")
	downloadCmd.Flags().Float64("start", 0, "Clip start offset in seconds")
	downloadCmd.Flags().Float64("end", 0, "Clip end offset in seconds")
	listCmd.Flags().StringP("state", "s", "", "Filter by state")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
