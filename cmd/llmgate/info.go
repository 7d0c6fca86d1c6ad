package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flynn-ai/llmgate/internal/config"
	"github.com/flynn-ai/llmgate/internal/cost"
	"github.com/flynn-ai/llmgate/internal/model"
	"github.com/flynn-ai/llmgate/internal/tools"
	"github.com/flynn-ai/llmgate/internal/usage"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	outputFormat string
	usageDays    int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools and their parameters",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers, their availability and models",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage recorded in the ledger",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

func init() {
	for _, c := range []*cobra.Command{toolsCmd, providersCmd, usageCmd} {
		c.Flags().StringVarP(&outputFormat, "format", "f", formatText, "output format: text, json or yaml")
	}
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "number of days in the daily breakdown")
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Schemas only; the web service is never called here.
	reg := tools.NewRegistry(nil, nil)
	if !cfg.Web.Enabled {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: web access is disabled, web tools will return an error")
	}

	schemas := make([]protocol.ToolSchema, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		schemas = append(schemas, d.Schema())
	}
	return printTools(cmd.OutOrStdout(), schemas, outputFormat)
}

func printTools(w io.Writer, schemas []protocol.ToolSchema, format string) error {
	if format != formatText {
		return encode(w, schemas, format)
	}
	for _, s := range schemas {
		fmt.Fprintf(w, "%s\n  %s\n", s.Name, s.Description)
		for _, p := range s.Parameters {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(w, "    %s (%s%s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	infos := model.NewRouter(cfg, nil).Providers()
	return printProviders(cmd.OutOrStdout(), infos, cfg.Providers.DefaultProvider, outputFormat)
}

func printProviders(w io.Writer, infos []protocol.ProviderInfo, defaultProvider, format string) error {
	if format != formatText {
		return encode(w, infos, format)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tAVAILABLE\tMODELS")
	for _, p := range infos {
		name := p.Name
		if name == defaultProvider {
			name += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", name, p.Available, strings.Join(p.Models, ", "))
	}
	return tw.Flush()
}

// usageReport is the machine-readable form of the usage command.
type usageReport struct {
	Path   string             `json:"path" yaml:"path"`
	Size   int64              `json:"size_bytes" yaml:"size_bytes"`
	Totals []usage.Total      `json:"totals" yaml:"totals"`
	Daily  []usage.DailyStats `json:"daily" yaml:"daily"`
	Cost   cost.Summary       `json:"cost" yaml:"cost"`
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Usage.Enabled {
		return fmt.Errorf("usage tracking is disabled in %s", configPath)
	}
	ledger, err := usage.Open(cfg.Usage.DBPath)
	if err != nil {
		return fmt.Errorf("open usage ledger: %w", err)
	}
	defer ledger.Close()

	report, err := readUsage(cmd.Context(), ledger, usageDays)
	if err != nil {
		return err
	}
	return printUsage(cmd.OutOrStdout(), report, outputFormat)
}

func readUsage(ctx context.Context, ledger *usage.Ledger, days int) (*usageReport, error) {
	totals, err := ledger.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}
	daily, err := ledger.Daily(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("read daily usage: %w", err)
	}
	return &usageReport{
		Path:   ledger.Path(),
		Size:   ledger.Size(),
		Totals: totals,
		Daily:  daily,
		Cost:   cost.Summarize(totals, nil),
	}, nil
}

func printUsage(w io.Writer, r *usageReport, format string) error {
	if format != formatText {
		return encode(w, r, format)
	}
	if len(r.Totals) == 0 {
		_, err := fmt.Fprintf(w, "No usage recorded yet (%s).\n", r.Path)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tREQUESTS\tFAILURES\tPROMPT\tCOMPLETION\tTOTAL\tTOOL CALLS")
	for _, t := range r.Totals {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			t.Provider, t.Model, t.Requests, t.Failures, t.PromptTokens, t.CompletionTokens, t.TotalTokens, t.ToolCalls)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tREQUESTS\tTOKENS\tTOOL CALLS")
	for _, d := range r.Daily {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", d.Date, d.Requests, d.TotalTokens, d.ToolCalls)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	c := r.Cost
	_, err := fmt.Fprintf(w, "\nLocal: %d tokens (%.1f%%)  Cloud: %d tokens, ~$%.4f  Saved: ~$%.4f\n",
		c.LocalTokens, c.LocalRate, c.CloudTokens, c.CloudCost, c.Savings)
	return err
}

func encode(w io.Writer, v any, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
	}
}
