package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutorstack/tutord/internal/config"
	"github.com/tutorstack/tutord/internal/ingest"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the tutor a question",
	Long: `Ask the tutor a question.

Examples:
  tutord ask "How do I choose between two job offers?"
  tutord ask --user alice "What is a premortem analysis?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/query", map[string]string{
			"query":   query,
			"user_id": userID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer   string `json:"answer"`
			Tooltips []struct {
				Name       string `json:"name"`
				Definition string `json:"definition"`
			} `json:"tooltips"`
			Issues   []string `json:"quality_issues"`
			Metadata struct {
				Sources        int   `json:"sources"`
				ResponseTimeMs int64 `json:"response_time_ms"`
			} `json:"metadata"`
		}
		if err := decodeData(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)

		if len(result.Tooltips) > 0 {
			fmt.Printf("\n%s\n", styled(ansiBold, "Concepts"))
			for _, t := range result.Tooltips {
				fmt.Printf("  %s: %s\n", styled(ansiCyan, t.Name), t.Definition)
			}
		}

		printStatus("Sources", "%d documents", result.Metadata.Sources)
		printStatus("Time", "%.1fs", float64(result.Metadata.ResponseTimeMs)/1000)
		if len(result.Issues) > 0 {
			printWarning("quality issues: %s", strings.Join(result.Issues, ", "))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("user", "", "user id for personalization")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index course material files (PDF or text)",
	Long: `Index course material files (PDF or text).

Each file is extracted locally, then submitted to the server, which chunks
and embeds it in the background.

Examples:
  tutord index lecture1.pdf lecture2.pdf
  tutord index --title "Week 3 notes" notes.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		for _, path := range args {
			text, err := ingest.ExtractText(path)
			if err != nil {
				printError("Could not extract %s: %v", path, err)
				continue
			}

			docTitle := title
			if docTitle == "" || len(args) > 1 {
				docTitle = filepath.Base(path)
			}

			resp, err := client.post("/documents", map[string]string{
				"title":   docTitle,
				"source":  filepath.Base(path),
				"content": text,
			})
			if err != nil {
				return err
			}

			var result map[string]string
			if err := decodeData(resp, &result); err != nil {
				return err
			}
			printSuccess("Queued %s (doc %s)", path, result["id"])
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().String("title", "", "title for the document")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage tutor profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/profile?user_id=" + userID)
		if err != nil {
			return err
		}

		var p any
		if err := decodeData(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field (role, tone, thinking_style, preferred_frameworks)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		userID, _ := cmd.Flags().GetString("user")

		body := map[string]any{}
		switch key {
		case "role", "tone", "thinking_style":
			body[key] = value
		case "preferred_frameworks":
			frameworks := strings.Split(value, ",")
			for i := range frameworks {
				frameworks[i] = strings.TrimSpace(frameworks[i])
			}
			body[key] = frameworks
		default:
			return fmt.Errorf("unknown profile field %q", key)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put("/profile?user_id="+userID, body)
		if err != nil {
			return err
		}
		if err := decodeData(resp, nil); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	profileShowCmd.Flags().String("user", "", "user id")
	profileSetCmd.Flags().String("user", "", "user id")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		reset, _ := cmd.Flags().GetBool("reset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if reset {
			resp, err := client.post("/reset-stats", nil)
			if err != nil {
				return err
			}
			if err := decodeData(resp, nil); err != nil {
				return err
			}
			printSuccess("Statistics reset")
			return nil
		}

		resp, err := client.get("/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Usage struct {
				TotalQueries    int64   `json:"total_queries"`
				TotalTokens     int64   `json:"total_tokens"`
				AvgResponseMs   float64 `json:"avg_response_ms"`
				QualityPassRate float64 `json:"quality_pass_rate"`
				EstimatedCost   float64 `json:"estimated_cost"`
				AvgTokens       float64 `json:"avg_tokens_per_query"`
			} `json:"usage"`
			Tooltips struct {
				Prebuilt   int     `json:"prebuilt"`
				Generated  int     `json:"generated"`
				Efficiency float64 `json:"efficiency"`
			} `json:"tooltips"`
		}
		if err := decodeData(resp, &stats); err != nil {
			return err
		}

		printStatus("Queries", "%d", stats.Usage.TotalQueries)
		printStatus("Tokens", "%d (%.0f/query)", stats.Usage.TotalTokens, stats.Usage.AvgTokens)
		printStatus("Avg response", "%.0fms", stats.Usage.AvgResponseMs)
		printStatus("Quality rate", "%.1f%%", stats.Usage.QualityPassRate*100)
		printStatus("Est. cost", "$%.4f", stats.Usage.EstimatedCost)
		printStatus("Tooltips", "%d prebuilt, %d generated (%.1f%% efficient)",
			stats.Tooltips.Prebuilt, stats.Tooltips.Generated, stats.Tooltips.Efficiency*100)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("reset", false, "reset all statistics")
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Browse interaction history",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Status    string `json:"status"`
		}
		if err := decodeData(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			query := ix.Query
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("%s  %s  %-7s  %s\n",
				styled(ansiCyan, ix.ID[:8]),
				ix.CreatedAt,
				ix.Status,
				query,
			)
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/interactions/" + args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeData(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", styled(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
