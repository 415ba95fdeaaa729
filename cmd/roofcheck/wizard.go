package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/wizard"
)

// --- accessories ---

var accessoryCmd = &cobra.Command{
	Use:   "accessory",
	Short: "Record roof accessories (pipes, vents, dishes...)",
}

var accessoryListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List recorded accessories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), inspectionPath(args[0], "accessories"))
		if err != nil {
			return err
		}
		var list []wizard.Accessory
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			printf("No accessories recorded.\n")
			return nil
		}
		for _, a := range list {
			printf("%d  %-15s %s\n", a.Position, a.Type, a.ID)
		}
		return nil
	},
}

var accessoryAddCmd = &cobra.Command{
	Use:   "add <id> <type>",
	Short: "Add an accessory (pipe, vent, rain-cap, rain-diverter, satellite-dish, chimney, other)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), inspectionPath(args[0], "accessories"), map[string]string{"type": args[1]})
		if err != nil {
			return err
		}
		var a wizard.Accessory
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}
		printSuccess("Added %s at index %d", a.Type, a.Position)
		return nil
	},
}

var accessoryEditCmd = &cobra.Command{
	Use:   "edit <id> <index> <type>",
	Short: "Change the type of an accessory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), inspectionPath(args[0], "accessories", strconv.Itoa(index)), map[string]string{"type": args[2]})
		if err != nil {
			return err
		}
		var a wizard.Accessory
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}
		printSuccess("Accessory %d is now %s", a.Position, a.Type)
		return nil
	},
}

var accessoryRmCmd = &cobra.Command{
	Use:   "rm <id> <index>",
	Short: "Remove an accessory and its photo",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), inspectionPath(args[0], "accessories", strconv.Itoa(index)))
		if err != nil {
			return err
		}
		var result struct {
			Accessory wizard.Accessory `json:"accessory"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed %s", result.Accessory.Type)
		return nil
	},
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return n, nil
}

func init() {
	accessoryCmd.AddCommand(accessoryListCmd, accessoryAddCmd, accessoryEditCmd, accessoryRmCmd)
}

// --- hail test square ---

var hailCmd = &cobra.Command{
	Use:   "hail",
	Short: "Count hail hits in the test square and pick closeups",
}

var hailListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "Show circled hail hits and closeup choices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hailRequest(cmd, "GET", inspectionPath(args[0], "hail-hits"), nil)
	},
}

var hailAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Record one more circled hail hit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hailRequest(cmd, "POST", inspectionPath(args[0], "hail-hits"), nil)
	},
}

var hailRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove the most recent hail hit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hailRequest(cmd, "DELETE", inspectionPath(args[0], "hail-hits"), nil)
	},
}

var hailSelectCmd = &cobra.Command{
	Use:   "select <id> <slot> <hit>",
	Short: "Assign a hail hit to closeup slot 1-3",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid slot %q", args[1])
		}
		hit, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid hail hit %q", args[2])
		}
		path := inspectionPath(args[0], "hail-hits", "closeups", strconv.Itoa(slot))
		return hailRequest(cmd, "PUT", path, map[string]int{"number": hit})
	},
}

func hailRequest(cmd *cobra.Command, method, path string, body any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.do(cmd.Context(), method, path, body)
	if err != nil {
		return err
	}
	var v inspection.HailView
	if err := decodeJSON(resp, &v); err != nil {
		return err
	}
	printHailView(v)
	return nil
}

func printHailView(v inspection.HailView) {
	count := fmt.Sprintf("%d of %d", v.Count, v.MinHits)
	if v.Count >= v.MinHits {
		count = colorize(colorGreen, count)
	} else {
		count = colorize(colorYellow, count)
	}
	printStatus("Hail hits", "%s circled", count)
	if v.Message != "" {
		printf("  %s\n", v.Message)
		return
	}
	for _, c := range v.Choices {
		printf("  %-12s %s\n", c.Label, c.Status)
	}
}

func init() {
	hailCmd.AddCommand(hailListCmd, hailAddCmd, hailRmCmd, hailSelectCmd)
}

// --- interview ---

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Record the insured interview",
}

var interviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the interview and its checklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), inspectionPath(args[0], "interview"))
		if err != nil {
			return err
		}
		var v inspection.InterviewView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		printInterview(v)
		return nil
	},
}

// interviewFlags maps CLI flags to interview fields.
var interviewFlags = []struct {
	flag, field, usage string
}{
	{"damage-notes", "damageNotes", "damage the insured reports"},
	{"satellite-in-use", "satelliteInUse", "is the satellite dish in use (yes/no)"},
	{"satellite-notes", "satelliteNotes", "notes about the satellite dish"},
	{"has-zelle", "hasZelle", "does the insured use Zelle (yes/no)"},
	{"zelle-phone", "zellePhone", "phone number registered with Zelle"},
	{"zelle-notes", "zelleNotes", "notes about Zelle payment"},
	{"claim-notes", "claimNotes", "claim details"},
}

var interviewSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Update interview answers",
	Long: `Update interview answers. Only the flags given are changed.

Examples:
  roofcheck interview set 3f2a... --damage-notes "leak in attic" --has-zelle yes --zelle-phone 5551234567`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update := map[string]string{}
		for _, f := range interviewFlags {
			if cmd.Flags().Changed(f.flag) {
				v, _ := cmd.Flags().GetString(f.flag)
				update[f.field] = v
			}
		}
		if len(update) == 0 {
			return fmt.Errorf("at least one answer flag is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), inspectionPath(args[0], "interview"), update)
		if err != nil {
			return err
		}
		var v inspection.InterviewView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		printSuccess("Interview updated")
		printInterview(v)
		return nil
	},
}

var interviewAttachCmd = &cobra.Command{
	Use:   "attach <id> <claim.pdf>",
	Short: "Append the text of a claim PDF to the claim notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.upload(cmd.Context(), "POST", inspectionPath(args[0], "interview", "claim-document"), "document", args[1], data)
		if err != nil {
			return err
		}
		var v inspection.InterviewView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		printSuccess("Claim document attached")
		return nil
	},
}

func printInterview(v inspection.InterviewView) {
	printStatus("Damage notes", "%s", orDash(v.DamageNotes))
	if v.HasSatelliteDish {
		printStatus("Satellite in use", "%s", orDash(v.SatelliteInUse))
	}
	printStatus("Zelle", "%s", orDash(v.HasZelle))
	if v.ZellePhone != "" {
		printStatus("Zelle phone", "%s", v.ZellePhone)
	}
	if v.ClaimNotes != "" {
		printStatus("Claim notes", "%d characters", len(v.ClaimNotes))
	}
	for _, item := range v.Checklist {
		mark := colorize(colorYellow, "○")
		if item.Done {
			mark = colorize(colorGreen, "●")
		}
		printf("  %s %s\n", mark, item.Label)
	}
	if v.Complete {
		printStep("Interview complete")
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	for _, f := range interviewFlags {
		interviewSetCmd.Flags().String(f.flag, "", f.usage)
	}
	interviewCmd.AddCommand(interviewShowCmd, interviewSetCmd, interviewAttachCmd)
}
