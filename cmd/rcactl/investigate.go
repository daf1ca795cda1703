package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

var (
	invIdentifiers map[string]string
	invServices    []string
	invKeywords    []string
	invReportedAt  string
	invBudget      time.Duration
	invMaxClusters int
	invSkipClass   bool
)

var investigateCmd = &cobra.Command{
	Use:   "investigate [description...]",
	Short: "Investigate an incident from a description and/or identifiers",
	Example: `  rcactl investigate "labels missing for tracking 1Z999AA10123456784 since 8am"
  rcactl investigate --id entity_id=E-1042 --service label-service --budget 90s --json`,
	RunE: runInvestigate,
}

func init() {
	investigateCmd.Flags().StringToStringVar(&invIdentifiers, "id", nil, "Identifier as type=value (repeatable)")
	investigateCmd.Flags().StringSliceVar(&invServices, "service", nil, "Restrict to services (globs allowed)")
	investigateCmd.Flags().StringSliceVar(&invKeywords, "keyword", nil, "Extra search keywords")
	investigateCmd.Flags().StringVar(&invReportedAt, "reported-at", "", "When the problem was reported (RFC 3339)")
	investigateCmd.Flags().DurationVar(&invBudget, "budget", 0, "Time budget for the whole run")
	investigateCmd.Flags().IntVar(&invMaxClusters, "max-clusters", 0, "Maximum patterns to report")
	investigateCmd.Flags().BoolVar(&invSkipClass, "skip-classification", false, "Cluster only, do not classify")
}

func buildInvestigationRequest(args []string) (models.InvestigationRequest, error) {
	req := models.InvestigationRequest{
		Description: strings.TrimSpace(strings.Join(args, " ")),
		Services:    invServices,
		Keywords:    invKeywords,
		Options: models.Options{
			Budget:             invBudget,
			MaxClusters:        invMaxClusters,
			SkipClassification: invSkipClass,
		},
	}
	for k, v := range invIdentifiers {
		if req.Identifiers == nil {
			req.Identifiers = make(map[models.IdentifierType]string)
		}
		req.Identifiers[models.IdentifierType(strings.ToLower(k))] = v
	}
	if invReportedAt != "" {
		ts, err := utils.ParseRFC3339(invReportedAt)
		if err != nil {
			return req, fmt.Errorf("--reported-at: %w", err)
		}
		req.ReportedAt = ts
	}
	if req.Description == "" && len(req.Identifiers) == 0 {
		return req, fmt.Errorf("a description or at least one --id is required")
	}
	return req, nil
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	req, err := buildInvestigationRequest(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var report models.Report
	if serverAddr != "" {
		client, closeConn, err := remoteClient()
		if err != nil {
			return err
		}
		defer closeConn()
		wire, err := api.ToWireInvestigationRequest(req)
		if err != nil {
			return err
		}
		out, err := client.Investigate(ctx, wire)
		if err != nil {
			return err
		}
		if report, err = api.DecodeReport(out); err != nil {
			return err
		}
	} else {
		a, err := localApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		report = a.Investigator.Investigate(ctx, req)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, report models.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := io.WriteString(w, report.Render())
	return err
}
