package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velikanov/folio/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the portfolio assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var session struct {
			ID string `json:"id"`
		}
		resp, err := client.post("/api/chat/sessions", map[string]string{"language": language})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &session); err != nil {
			return err
		}
		defer client.delete("/api/chat/sessions/" + session.ID)

		resp, err = client.post("/api/chat/sessions/"+session.ID+"/messages", map[string]string{"text": question})
		if err != nil {
			return err
		}
		var turn struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(resp, &turn); err != nil {
			return err
		}

		fmt.Println(turn.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().String("language", "en", "reply language code")
}

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the assistant's knowledge base",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/admin/knowledge/")
		if err != nil {
			return err
		}
		var items []struct {
			ID          string `json:"id"`
			Topic       string `json:"topic"`
			Description string `json:"description"`
			Proficiency int    `json:"proficiency"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			printWarning("No knowledge items yet")
			return nil
		}
		for _, item := range items {
			desc := item.Description
			if len(desc) > 60 {
				desc = desc[:60] + "..."
			}
			fmt.Printf("  %s  %s (%d%%)\n      %s\n", item.ID, colorize(colorBold, item.Topic), item.Proficiency, desc)
		}
		return nil
	},
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <topic> <description>",
	Short: "Add a knowledge item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		proficiency, _ := cmd.Flags().GetInt("proficiency")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"topic":       args[0],
			"description": args[1],
			"proficiency": proficiency,
		}
		resp, err := client.post("/admin/knowledge/", body)
		if err != nil {
			return err
		}
		var item struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}

		printSuccess("Added knowledge item %s", item.ID)
		return nil
	},
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a knowledge item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/admin/knowledge/" + args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed knowledge item %s", args[0])
		return nil
	},
}

func init() {
	knowledgeAddCmd.Flags().Int("proficiency", 50, "topic proficiency (0-100)")
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeRemoveCmd)
}

// --- messages ---

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Manage contact-form messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List received messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/admin/messages/?limit=%d", limit))
		if err != nil {
			return err
		}
		var msgs []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			Message   string `json:"message"`
			Read      bool   `json:"read"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &msgs); err != nil {
			return err
		}

		if len(msgs) == 0 {
			printWarning("No messages")
			return nil
		}
		for _, m := range msgs {
			marker := "•"
			if m.Read {
				marker = " "
			}
			fmt.Printf("%s %s  %s <%s>  %s\n      %s\n", marker, m.ID, colorize(colorBold, m.Name), m.Email, m.CreatedAt, m.Message)
		}
		return nil
	},
}

var messagesReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a message as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/admin/messages/"+args[0]+"/read", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Marked %s as read", args[0])
		return nil
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/admin/messages/" + args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted message %s", args[0])
		return nil
	},
}

func init() {
	messagesListCmd.Flags().Int("limit", 20, "maximum number of messages to list")
	messagesCmd.AddCommand(messagesListCmd)
	messagesCmd.AddCommand(messagesReadCmd)
	messagesCmd.AddCommand(messagesDeleteCmd)
}

// --- analytics ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show traffic analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/admin/analytics?days=%d", days))
		if err != nil {
			return err
		}
		var sum struct {
			TotalViews     int `json:"total_views"`
			UniqueVisitors int `json:"unique_visitors"`
			ByPage         []struct {
				Path  string `json:"path"`
				Count int    `json:"count"`
			} `json:"by_page"`
			Devices  map[string]int `json:"devices"`
			Browsers map[string]int `json:"browsers"`
		}
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}

		printStatus("Window", "last %d days", days)
		printStatus("Page views", "%d", sum.TotalViews)
		printStatus("Unique visitors", "%d", sum.UniqueVisitors)
		for _, p := range sum.ByPage {
			fmt.Printf("    %5d  %s\n", p.Count, p.Path)
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().Int("days", 30, "number of days to summarize")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import content into the knowledge base",
	Long: `Import content into the knowledge base.

Examples:
  folio import --resume ./resume.pdf
  folio import --url https://example.com/about --topic "About page"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetString("resume")
		url, _ := cmd.Flags().GetString("url")
		topic, _ := cmd.Flags().GetString("topic")

		if (resume == "") == (url == "") {
			return fmt.Errorf("exactly one of --resume or --url is required")
		}

		req := map[string]string{"topic": topic}
		if resume != "" {
			abs, err := absPath(resume)
			if err != nil {
				return err
			}
			req["kind"] = "resume"
			req["source"] = abs
		} else {
			req["kind"] = "url"
			req["source"] = url
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/admin/import", req)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued import job %s", result["id"])
		return nil
	},
}

// absPath resolves the resume path for the server-side worker, which runs
// with a different working directory.
func absPath(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", p)
	}
	return filepath.Abs(p)
}

func init() {
	importCmd.Flags().String("resume", "", "path to a resume PDF")
	importCmd.Flags().String("url", "", "URL to fetch and import")
	importCmd.Flags().String("topic", "", "topic for the imported knowledge item")
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
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	Run: func(cmd *cobra.Command, args []string) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(config.ValidKeys())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
