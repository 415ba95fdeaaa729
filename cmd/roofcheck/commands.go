package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/roofcheck/internal/config"
	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/report"
)

// inspectionSummary mirrors the inspection record returned by the server.
type inspectionSummary struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Inspector   string     `json:"inspector"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// stateView is the wizard state as served by /inspections/{id}.
type stateView struct {
	Inspection inspectionSummary `json:"inspection"`
	inspection.State
}

func inspectionPath(id string, parts ...string) string {
	p := "/inspections/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
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

		for _, k := range config.ShowAll(cfg) {
			printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
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

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key [key]",
	Short: "Store the vision API key in the system keychain",
	Long: `Store the vision API key in the system keychain.

The key is read from standard input when no argument is given:
  roofcheck config set-api-key < key.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading key from stdin: %w", err)
			}
			key = line
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("API key is empty")
		}

		if err := config.SetAPIKey(config.NewKeychain(), key); err != nil {
			return err
		}
		printSuccess("API key stored; restart the server to use it")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetAPIKeyCmd)
}

// --- inspection ---

var inspectionCmd = &cobra.Command{
	Use:     "inspection",
	Aliases: []string{"insp"},
	Short:   "Create inspections and walk through the wizard",
}

var inspectionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new inspection",
	Long: `Start a new inspection.

Examples:
  roofcheck inspection new --address "12 Elm St" --inspector "J. Doe"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("address")
		inspector, _ := cmd.Flags().GetString("inspector")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/inspections", map[string]string{
			"address":   address,
			"inspector": inspector,
		})
		if err != nil {
			return err
		}

		var in inspectionSummary
		if err := decodeJSON(resp, &in); err != nil {
			return err
		}

		printSuccess("Created inspection %s", in.ID)
		printf("%s\n", in.ID)
		printStep("Run `roofcheck inspection show %s` to see the first step", in.ID)
		return nil
	},
}

var inspectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent inspections",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/inspections?limit=%d", limit))
		if err != nil {
			return err
		}

		var list []inspectionSummary
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			printf("No inspections yet.\n")
			return nil
		}

		for _, in := range list {
			address := in.Address
			if address == "" {
				address = "(no address)"
			}
			printf("%s  %s  %-11s %s\n",
				in.ID,
				in.CreatedAt.Local().Format("2006-01-02 15:04"),
				in.Status,
				address,
			)
		}
		return nil
	},
}

var inspectionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show wizard progress of an inspection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return moveCursor(cmd, args[0], "", asJSON)
	},
}

var inspectionNextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Move to the next wizard step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveCursor(cmd, args[0], "advance", false)
	},
}

var inspectionBackCmd = &cobra.Command{
	Use:   "back <id>",
	Short: "Move to the previous wizard step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveCursor(cmd, args[0], "back", false)
	},
}

// moveCursor posts the cursor action (or reads the state when action is
// empty) and prints the resulting overview.
func moveCursor(cmd *cobra.Command, id, action string, asJSON bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var st stateView
	if action == "" {
		resp, err := client.get(cmd.Context(), inspectionPath(id))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
	} else {
		resp, err := client.post(cmd.Context(), inspectionPath(id, action), nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
	}

	if asJSON {
		return printJSON(st)
	}
	printOverview(st)
	return nil
}

func printOverview(st stateView) {
	printStatus("Inspection", "%s (%s)", st.Inspection.ID, st.Inspection.Status)
	if st.Inspection.Address != "" {
		printStatus("Address", "%s", st.Inspection.Address)
	}
	printStatus("Photos", "%d of %d captured", st.Captured, st.Total)

	for _, sec := range st.Sections {
		printf("%s (%d/%d)\n", colorize(colorBold, sec.Name), sec.Completed, len(sec.Steps))
		if len(sec.Steps) == 0 {
			printf("    (no steps)\n")
		}
		for _, step := range sec.Steps {
			printf("  %s %s\n", stepMark(step.Status, step.Current), step.Name)
		}
	}
	printCurrentStep(st)
}

func printCurrentStep(st stateView) {
	if st.Finished {
		printStep("All steps visited; run `roofcheck interview set %s` and `roofcheck inspection complete %s`", st.Inspection.ID, st.Inspection.ID)
		return
	}
	if st.Step == nil {
		return
	}
	printStep("%s / %s: %s", st.Section, st.Step.Key, st.Step.Name)
	if st.Step.Instructions != "" {
		printf("  %s\n", st.Step.Instructions)
	}
}

var inspectionCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Finish the inspection and generate the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating report...")
		resp, err := client.post(cmd.Context(), inspectionPath(args[0], "complete"), nil)
		if err != nil {
			return err
		}
		var rep report.Report
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}

		if rep.Generator == report.GeneratorFallback {
			printWarning("Report built from the offline template")
		}
		printSuccess("Inspection %s completed", args[0])
		printf("%s\n", report.FormatText(rep.Body))
		return nil
	},
}

var inspectionReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Print or save the report of a completed inspection",
	Long: `Print or save the report of a completed inspection.

Examples:
  roofcheck inspection report 3f2a...
  roofcheck inspection report 3f2a... --format markdown --output report.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if format != "text" && format != "markdown" {
			return fmt.Errorf("unknown format %q (use text or markdown)", format)
		}

		q := url.Values{"format": {format}}
		if output != "" {
			q.Set("download", "1")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), inspectionPath(args[0], "report")+"?"+q.Encode())
		if err != nil {
			return err
		}
		body, err := readBody(resp)
		if err != nil {
			return err
		}

		if output == "" {
			printf("%s", body)
			if len(body) > 0 && body[len(body)-1] != '\n' {
				printf("\n")
			}
			return nil
		}
		if err := os.WriteFile(output, body, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		printSuccess("Report saved to %s", output)
		return nil
	},
}

func init() {
	inspectionNewCmd.Flags().String("address", "", "property address")
	inspectionNewCmd.Flags().String("inspector", "", "inspector name")
	inspectionListCmd.Flags().Int("limit", 20, "maximum number of inspections")
	inspectionShowCmd.Flags().Bool("json", false, "print the raw state as JSON")
	inspectionReportCmd.Flags().String("format", "text", "report format: text or markdown")
	inspectionReportCmd.Flags().StringP("output", "o", "", "write the report to a file")

	inspectionCmd.AddCommand(
		inspectionNewCmd,
		inspectionListCmd,
		inspectionShowCmd,
		inspectionNextCmd,
		inspectionBackCmd,
		inspectionCompleteCmd,
		inspectionReportCmd,
	)
}

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture <id> <section> <step> <photo>",
	Short: "Upload a photo for a wizard step and show its assessment",
	Long: `Upload a photo for a wizard step and show its assessment.

Examples:
  roofcheck capture 3f2a... elevations front ./IMG_0412.jpg
  roofcheck capture 3f2a... hail-test-square closeup-1 ./hit.png`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, section, step, file := args[0], args[1], args[2], args[3]

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s...", file)
		resp, err := client.upload(cmd.Context(), "PUT", inspectionPath(id, "photos", section, step), "photo", file, data)
		if err != nil {
			return err
		}
		var res inspection.CaptureResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printSuccess("Stored %s / %s (%dx%d)", res.Section, res.Step, res.Width, res.Height)
		if res.Pending {
			printStep("Analysis queued (job %s); check with `roofcheck inspection show %s`", res.JobID, id)
			return nil
		}
		printOutcome(id, res)
		return nil
	},
}

func printOutcome(id string, res inspection.CaptureResult) {
	o := res.Outcome
	if o == nil {
		return
	}
	if o.CredentialMissing {
		printWarning("No vision API key configured; the assessment below is simulated")
		if o.SetupHint != "" {
			printf("  %s\n", o.SetupHint)
		}
	}
	if o.Notice != "" {
		printWarning("%s", o.Notice)
	}

	if r := o.Result; r != nil {
		printStatus("Quality", "%s (confidence %d%%)", qualityLabel(r.OverallQuality), r.Confidence)
		for _, issue := range r.Issues {
			printf("  - [%s] %s\n", issue.Severity, issue.Message)
		}
		for _, rec := range r.Recommendations {
			printf("  * %s\n", rec)
		}
	}

	if o.NeedsRetake {
		printWarning("Retake recommended: roofcheck retake %s %s %s", id, res.Section, res.Step)
	}
	if len(o.Actions) > 0 {
		printStatus("Next", "%s", strings.Join(o.Actions, ", "))
	}
}

var retakeCmd = &cobra.Command{
	Use:   "retake <id> <section> <step>",
	Short: "Discard the photo of a step so it can be captured again",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, section, step := args[0], args[1], args[2]

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), inspectionPath(id, "photos", section, step))
		if err != nil {
			return err
		}
		var st stateView
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		printSuccess("Removed photo for %s / %s", section, step)
		printCurrentStep(st)
		return nil
	},
}
