package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rahul/stepwright/internal/schema"
)

var (
	planInput  string
	planOutput string
	runJSON    bool
	histLimit  int
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Interpret a recorded model answer into a plan without running it",
	Long: `Reads the model's raw answer from --input (or stdin) and prints the plan the
interpreter builds for the request. No model is called and nothing is executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Ask the model, interpret its answer and execute the plan",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the effective tool schema as YAML",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

var historyCmd = &cobra.Command{
	Use:   "history [plan-id]",
	Short: "List stored plans, or show one plan with its outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	planCmd.Flags().StringVarP(&planInput, "input", "i", "-", "file holding the raw model answer, - for stdin")
	planCmd.Flags().StringVarP(&planOutput, "output-file", "o", "", "write the plan JSON here instead of stdout")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the report as JSON")
	historyCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "number of plans to list")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cfg)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd.InOrStdin(), planInput)
	if err != nil {
		return err
	}
	plan := a.interpreter.Interpret(strings.Join(args, " "), raw)

	out := cmd.OutOrStdout()
	if planOutput != "" {
		f, err := os.Create(planOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", planOutput, err)
		}
		defer f.Close()
		out = f
	}
	return writeJSON(out, plan)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.agent.Run(cmd.Context(), "cli", strings.Join(args, " "))
	if err != nil {
		return err
	}
	if runJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Render())
	if !report.Succeeded() {
		return fmt.Errorf("plan %s did not complete", report.Plan.ID)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cfg)
	if err != nil {
		return err
	}
	return schema.Encode(cmd.OutOrStdout(), a.schema.Snapshot().Entries())
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		rec, err := st.GetPlan(args[0])
		if err != nil {
			return err
		}
		return writeJSON(out, rec)
	}

	plans, err := st.ListPlans(histLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCHAT\tORIGIN\tREQUEST")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.CreatedAt.Format("2006-01-02 15:04:05"), p.ChatID, p.Origin, oneLine(p.Request, 60))
	}
	return tw.Flush()
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" || name == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
