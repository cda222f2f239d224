package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"rmmhunt/internal/threathunt"
	"rmmhunt/internal/zeronetworks"
)

var fieldsFlags struct {
	apiKey  string
	baseURL string
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the filterable activity fields",
	Long: `List the network activity fields the portal accepts in filters, with
their constraints and the number of known selection values.`,
	RunE: runFields,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)

	fieldsCmd.Flags().StringVar(&fieldsFlags.apiKey, "api-key", os.Getenv("RMMHUNT_API_KEY"), "Zero Networks API key (env: RMMHUNT_API_KEY)")
	fieldsCmd.Flags().StringVar(&fieldsFlags.baseURL, "base-url", "", "portal base URL (default: derived from the API key)")
}

func runFields(cmd *cobra.Command, args []string) error {
	if fieldsFlags.apiKey == "" {
		return fmt.Errorf("API key required (use --api-key flag or RMMHUNT_API_KEY env var)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []zeronetworks.Option{zeronetworks.WithLogger(logger.Named("api"))}
	if fieldsFlags.baseURL != "" {
		opts = append(opts, zeronetworks.WithBaseURL(fieldsFlags.baseURL))
	}
	api, err := zeronetworks.New(fieldsFlags.apiKey, opts...)
	if err != nil {
		return fmt.Errorf("initializing api client: %w", err)
	}
	hunter, err := threathunt.NewHunter(ctx, api,
		threathunt.WithLogger(logger.Named("hunter")))
	if err != nil {
		return fmt.Errorf("initializing hunter: %w", err)
	}

	fields := hunter.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Field", "Single Value", "Exclude Supported", "Selections")
	for _, name := range names {
		meta := fields[name]
		table.Append(name,
			strconv.FormatBool(meta.IsSingleValue),
			strconv.FormatBool(!meta.DisableExcludeSupport),
			strconv.Itoa(len(meta.Selections)))
	}
	table.Render()
	return nil
}
