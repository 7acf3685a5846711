// Command openclawctl is a thin HTTP client for the control plane's REST
// API, for operators to drive agents and inspect team state from a
// terminal without going through the web UI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiURL  string
	teamID  string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "openclawctl",
		Short: "Operate an openclaw control plane over its REST API",
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("OPENCLAW_API_URL", "http://localhost:8080"), "control plane API base URL")
	root.PersistentFlags().StringVar(&teamID, "team-id", os.Getenv("OPENCLAW_TEAM_ID"), "team id")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newRunCmd(), newStatusCmd(), newTasksCmd(), newRequestsCmd(), newRespondCmd(), newCostsCmd(), newAgentsCmd(), newAdaptersCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type client struct {
	base string
	http *http.Client
}

func newClient() *client {
	return &client{base: apiURL, http: &http.Client{Timeout: timeout}}
}

func (c *client) do(method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func requireTeamID() error {
	if teamID == "" {
		return fmt.Errorf("--team-id is required (or set OPENCLAW_TEAM_ID)")
	}
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error encoding output:", err)
		return
	}
	fmt.Println(string(data))
}

func newRunCmd() *cobra.Command {
	var agentID, adapterOverride string
	var taskID int64
	var noPoll bool

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run an agent once against a raw prompt or a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if agentID == "" {
				return fmt.Errorf("--agent-id is required")
			}
			body := map[string]any{"prompt": args[0]}
			if adapterOverride != "" {
				body["adapter"] = adapterOverride
			}
			if taskID != 0 {
				body["task_id"] = taskID
			}
			var result map[string]any
			_, err := newClient().do(http.MethodPost, "/agents/"+agentID+"/run", body, &result)
			if err != nil {
				return err
			}
			printJSON(result)
			if outcome, _ := result["outcome"].(string); outcome == "failed" || outcome == "timeout" {
				os.Exit(1)
			}
			_ = noPoll // accepted for symmetry with the adapter subprocess contract; run is synchronous
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id to run")
	cmd.Flags().Int64Var(&taskID, "task-id", 0, "task id to attach the run to")
	cmd.Flags().StringVar(&adapterOverride, "adapter", "", "adapter override")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "reserved: run is always synchronous")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent statuses for a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(); err != nil {
				return err
			}
			var result map[string]any
			if _, err := newClient().do(http.MethodGet, "/teams/"+teamID+"/agents", nil, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
}

func newTasksCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks for a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(); err != nil {
				return err
			}
			path := "/teams/" + teamID + "/tasks"
			if status != "" {
				path += "?status=" + status
			}
			var result map[string]any
			if _, err := newClient().do(http.MethodGet, path, nil, &result); err != nil {
				return err
			}
			if tasks, ok := result["tasks"].([]any); ok && limit > 0 && len(tasks) > limit {
				result["tasks"] = tasks[:limit]
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by task status")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit the number of tasks printed")
	return cmd
}

func newRequestsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List human-loop requests for a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(); err != nil {
				return err
			}
			var result map[string]any
			if _, err := newClient().do(http.MethodGet, "/teams/"+teamID+"/human-requests", nil, &result); err != nil {
				return err
			}
			if !all {
				if reqs, ok := result["requests"].([]any); ok {
					pending := make([]any, 0, len(reqs))
					for _, r := range reqs {
						if m, ok := r.(map[string]any); ok && m["status"] == "pending" {
							pending = append(pending, r)
						}
					}
					result["requests"] = pending
				}
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include already-resolved and expired requests")
	return cmd
}

func newRespondCmd() *cobra.Command {
	var respondedBy string

	cmd := &cobra.Command{
		Use:   "respond <request_id> <response>",
		Short: "Respond to a pending human-loop request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"response": args[1], "responded_by": respondedBy}
			var result map[string]any
			status, err := newClient().do(http.MethodPost, "/human-requests/"+args[0]+"/respond", body, &result)
			if err != nil {
				if status == http.StatusNotFound {
					os.Exit(1)
				}
				if status == http.StatusConflict {
					os.Exit(1)
				}
				return err
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&respondedBy, "by", "", "identity of the responding human")
	return cmd
}

func newCostsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show a team's session cost summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(); err != nil {
				return err
			}
			path := fmt.Sprintf("/teams/%s/costs?days=%d", teamID, days)
			var result map[string]any
			if _, err := newClient().do(http.MethodGet, path, nil, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "lookback window in days")
	return cmd
}

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents for a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTeamID(); err != nil {
				return err
			}
			var result map[string]any
			if _, err := newClient().do(http.MethodGet, "/teams/"+teamID+"/agents", nil, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
}

// adapterNames mirrors the set an adapter.Registry is populated with at
// process start (cmd/apiserver, cmd/dispatcher); there is no list endpoint
// since adapter selection happens per-run, not as a discoverable resource.
var adapterNames = []string{"claude-code", "codex"}

func newAdaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the adapters a runner process can resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range adapterNames {
				fmt.Println(name)
			}
			return nil
		},
	}
}
