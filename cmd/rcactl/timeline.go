package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

var (
	tlCompoundKey string
	tlBudget      time.Duration
)

var timelineCmd = &cobra.Command{
	Use:   "timeline [entity-id]",
	Short: "Show the merged timeline of one entity",
	Example: `  rcactl timeline E-1042
  rcactl timeline --key "acme:PO-7781" --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTimeline,
}

func init() {
	timelineCmd.Flags().StringVar(&tlCompoundKey, "key", "", "Compound business key resolved through the warehouse")
	timelineCmd.Flags().DurationVar(&tlBudget, "budget", 0, "Time budget for all branches")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	req := models.TimelineRequest{CompoundKey: tlCompoundKey, Options: models.Options{Budget: tlBudget}}
	if len(args) == 1 {
		req.EntityID = args[0]
	}
	if req.EntityID == "" && req.CompoundKey == "" {
		return fmt.Errorf("an entity id or --key is required")
	}
	ctx := cmd.Context()

	var result models.TimelineResult
	if serverAddr != "" {
		client, closeConn, err := remoteClient()
		if err != nil {
			return err
		}
		defer closeConn()
		wire, err := api.ToWireTimelineRequest(req)
		if err != nil {
			return err
		}
		out, err := client.GetTimeline(ctx, wire)
		if err != nil {
			return err
		}
		if result, err = api.DecodeTimeline(out); err != nil {
			return err
		}
	} else {
		a, err := localApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		result = a.Timeline.GetTimeline(ctx, req)
	}
	return printTimeline(cmd.OutOrStdout(), result)
}

func printTimeline(w io.Writer, result models.TimelineResult) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "Entity: %s", result.EntityID)
	if result.ResolvedKey != "" {
		fmt.Fprintf(w, " (from %s)", result.ResolvedKey)
	}
	fmt.Fprintln(w)
	if s := result.State; s != nil {
		fmt.Fprintf(w, "State:  %s (%s", s.State, s.Source)
		if !s.ObservedAt.IsZero() {
			fmt.Fprintf(w, ", %s", s.ObservedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(w, ")")
	}

	keys := make([]string, 0, len(result.Branches))
	for k := range result.Branches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "\nBranches:")
	bw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		b := result.Branches[k]
		status := "ok"
		if b.Err != nil {
			status = string(b.Err.Kind) + ": " + b.Err.Message
		}
		fmt.Fprintf(bw, "  %s\t%d rows\t%d events\t%s\n", k, len(b.Rows), len(b.Events), status)
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nEvents:")
	ew := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range result.Events {
		fmt.Fprintf(ew, "  %s\t%s\t%s\t%s\n", e.Time.Format(time.RFC3339), e.Severity, e.Branch, e.Event)
	}
	if err := ew.Flush(); err != nil {
		return err
	}
	for _, m := range result.Markers {
		fmt.Fprintf(w, "! %s\n", m.Error())
	}
	if result.Partial {
		fmt.Fprintln(w, "(partial result)")
	}
	return nil
}
