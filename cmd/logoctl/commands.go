package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/orchestrator"
)

type globalFlags struct {
	server  string
	user    string
	session string
	json    bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRoot(out io.Writer) *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "logoctl",
		Short:         "Drive a logoforge workflow session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.server, "server", envOr("LOGOFORGE_URL", "http://localhost:8080"), "server base URL")
	pf.StringVar(&g.user, "user", envOr("LOGOFORGE_USER", ""), "user id sent as X-User-ID")
	pf.StringVarP(&g.session, "session", "s", envOr("LOGOFORGE_SESSION", ""), "workflow session id")
	pf.BoolVar(&g.json, "json", false, "print raw JSON replies")

	cmd.AddCommand(
		newStartCmd(g),
		newStatusCmd(g),
		newAdvanceCmd(g),
		newBackCmd(g),
		newApproveCmd(g),
		newIterateCmd(g),
		newEvaluateCmd(g),
		newExportCmd(g),
		newClearCmd(g),
		newRPCCmd(g),
	)
	return cmd
}

func (g *globalFlags) client() (*apiClient, error) {
	if g.session == "" {
		return nil, fmt.Errorf("--session is required")
	}
	return newAPIClient(g.server, g.user, g.session), nil
}

// call runs one request and hands the reply to pretty, or prints it raw
// with --json.
func (g *globalFlags) call(c *cobra.Command, method, path string, body interface{}, pretty func(io.Writer, json.RawMessage) error) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	data, err := cl.do(c.Context(), method, path, body)
	if err != nil {
		return err
	}
	if g.json || pretty == nil {
		if len(data) > 0 {
			_, err = fmt.Fprintln(c.OutOrStdout(), strings.TrimSpace(string(data)))
		}
		return err
	}
	return pretty(c.OutOrStdout(), data)
}

func printState(w io.Writer, data json.RawMessage) error {
	var st domain.AgentState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	fmt.Fprintf(w, "Session : %s\n", st.SessionID)
	fmt.Fprintf(w, "Phase   : %s (iteration %d)\n", st.CurrentPhase, st.IterationCounts[st.CurrentPhase])
	if st.AwaitingApproval != nil {
		fmt.Fprintf(w, "Pending : %d approval item(s)\n", len(st.AwaitingApproval.Items))
	}
	return nil
}

func newStartCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Create the session, or show it if it exists",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return g.call(c, http.MethodPost, "/api/workflow", nil, printState)
		},
	}
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workflow progress",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return g.call(c, http.MethodGet, "/api/workflow/status", nil, func(w io.Writer, data json.RawMessage) error {
				var st orchestrator.WorkflowStatus
				if err := json.Unmarshal(data, &st); err != nil {
					return fmt.Errorf("decode status: %w", err)
				}
				fmt.Fprintf(w, "Phase     : %s (%d%%)\n", st.CurrentPhase, st.ProgressPercent)
				fmt.Fprintf(w, "Left      : %d iteration(s) in this phase\n", st.RemainingIterations[st.CurrentPhase])
				fmt.Fprintf(w, "Approval  : %s\n", approvalLine(st))
				fmt.Fprintf(w, "Artifacts : %d research, %d concepts, %d svg versions\n",
					st.ResearchCount, st.ConceptCount, st.SVGVersionCount)
				if st.LatestEvaluation != nil {
					verdict := "failed"
					if st.LatestEvaluation.Passed {
						verdict = "passed"
					}
					fmt.Fprintf(w, "Latest    : %.1f %s\n", st.LatestEvaluation.OverallScore, verdict)
				}
				return nil
			})
		},
	}
}

func approvalLine(st orchestrator.WorkflowStatus) string {
	switch {
	case st.PendingApproval != nil:
		var parts []string
		for _, item := range st.PendingApproval.Items {
			parts = append(parts, fmt.Sprintf("%s %s=%s", item.ID, item.Type, item.Status))
		}
		return "waiting on " + strings.Join(parts, ", ")
	case st.RequiresApproval:
		return "required before leaving this phase"
	default:
		return "not required"
	}
}

func newAdvanceCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Move to the next phase if allowed",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return g.call(c, http.MethodPost, "/api/workflow/advance", nil, func(w io.Writer, data json.RawMessage) error {
				var res orchestrator.AdvanceResult
				if err := json.Unmarshal(data, &res); err != nil {
					return fmt.Errorf("decode result: %w", err)
				}
				if res.Advanced {
					fmt.Fprintf(w, "advanced %s -> %s\n", res.From, res.To)
				} else {
					fmt.Fprintf(w, "stayed in %s: %s\n", res.From, res.Reason)
				}
				return nil
			})
		},
	}
}

func newBackCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "back <phase>",
		Short: "Return to an earlier phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return g.call(c, http.MethodPost, "/api/workflow/back", map[string]string{"phase": args[0]}, printState)
		},
	}
}

func newApproveCmd(g *globalFlags) *cobra.Command {
	var status, feedback string
	cmd := &cobra.Command{
		Use:   "approve <item-id>",
		Short: "Record a decision on an approval item",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			body := map[string]string{"status": status, "feedback": feedback}
			return g.call(c, http.MethodPost, "/api/workflow/approval/"+args[0], body, printState)
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.ApprovalApproved), "approved, approved_with_changes or rejected")
	cmd.Flags().StringVar(&feedback, "feedback", "", "reviewer feedback")
	return cmd
}

func newIterateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "iterate",
		Short: "Consume one iteration of the current phase",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return g.call(c, http.MethodPost, "/api/workflow/iterate", nil, printState)
		},
	}
}

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <svg-id>",
		Short: "Run the judge panel on an SVG version",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return g.call(c, http.MethodPost, "/api/workflow/svg/"+args[0]+"/evaluate", nil, func(w io.Writer, data json.RawMessage) error {
				var ev domain.AggregatedEvaluation
				if err := json.Unmarshal(data, &ev); err != nil {
					return fmt.Errorf("decode evaluation: %w", err)
				}
				fmt.Fprintf(w, "Score   : %.1f (passed=%t)\n", ev.OverallScore, ev.Passed)
				if ev.Summary != "" {
					fmt.Fprintf(w, "Summary : %s\n", ev.Summary)
				}
				for _, s := range ev.Suggestions {
					fmt.Fprintf(w, "  - %s\n", s)
				}
				return nil
			})
		},
	}
}

func newExportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <svg-id>",
		Short: "Write an SVG version to artifact storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return g.call(c, http.MethodPost, "/api/workflow/svg/"+args[0]+"/export", nil, func(w io.Writer, data json.RawMessage) error {
				var res orchestrator.ExportResult
				if err := json.Unmarshal(data, &res); err != nil {
					return fmt.Errorf("decode export: %w", err)
				}
				fmt.Fprintf(w, "exported %s to %s\n", res.SVGID, res.Key)
				return nil
			})
		},
	}
}

func newClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the session",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return g.call(c, http.MethodDelete, "/api/workflow", nil, func(w io.Writer, _ json.RawMessage) error {
				fmt.Fprintf(w, "cleared %s\n", g.session)
				return nil
			})
		},
	}
}

// newRPCCmd sends a raw session envelope; useful for agents and debugging.
func newRPCCmd(g *globalFlags) *cobra.Command {
	var phase, statePath, actionPath string
	cmd := &cobra.Command{
		Use:   "rpc <action>",
		Short: "Send a raw session envelope (init, get, set, update, transition, increment, log, clear)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			req := map[string]interface{}{"action": args[0], "sessionId": g.session}
			if phase != "" {
				req["phase"] = phase
			}
			for field, p := range map[string]string{"state": statePath, "agentAction": actionPath} {
				if p == "" {
					continue
				}
				data, err := readJSONFile(p)
				if err != nil {
					return err
				}
				req[field] = data
			}
			return g.call(c, http.MethodPost, "/api/session", req, nil)
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "target phase for transition")
	cmd.Flags().StringVar(&statePath, "state", "", "JSON file with the state or patch for set/update")
	cmd.Flags().StringVar(&actionPath, "agent-action", "", "JSON file with the action for log")
	return cmd
}

func readJSONFile(p string) (json.RawMessage, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", p)
	}
	return data, nil
}
