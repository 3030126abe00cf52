package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/campaign-health/internal/analysis"
	"github.com/AngelCh415/campaign-health/internal/config"
	"github.com/AngelCh415/campaign-health/internal/health"
	"github.com/AngelCh415/campaign-health/internal/logger"
	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var thresholdsFile, logLevel string

	root := &cobra.Command{
		Use:          "analyze",
		Short:        "Offline campaign health analysis",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "YAML thresholds file (default: built-in policy)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	var file string
	var pretty bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze one series or a JSON array of series",
		Long: `Reads campaign series as JSON and prints one result per series.

Examples:
  analyze run --file series.json
  cat batch.json | analyze run --file - --pretty`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			th, err := config.LoadThresholds(thresholdsFile)
			if err != nil {
				return err
			}
			eng, err := health.NewEngine(th)
			if err != nil {
				return err
			}
			log := logger.New(logger.Options{
				Service: "analyze",
				Level:   logger.ParseLevel(logLevel),
				Format:  "console",
				Output:  cmd.ErrOrStderr(),
			})

			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			series, err := decodeSeries(raw)
			if err != nil {
				return err
			}

			svc := analysis.NewService(store.NewMemoryStore(), eng, nil, log, analysis.Options{})
			out := make([]any, 0, len(series))
			failed := 0
			for _, s := range series {
				res, err := svc.AnalyzeSeries(s)
				if err != nil {
					failed++
					log.Error().Err(err).Str("campaign_id", s.Campaign.ID).Msg("analysis failed")
					out = append(out, analysis.Failure{CampaignID: s.Campaign.ID, Error: err.Error()})
					continue
				}
				out = append(out, res)
			}
			if err := writeOut(cmd.OutOrStdout(), out, pretty); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d series failed", failed, len(series))
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&file, "file", "f", "-", "Input JSON file, - for stdin")
	runCmd.Flags().BoolVar(&pretty, "pretty", false, "Indent output")

	thCmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Print the effective thresholds as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			th, err := config.LoadThresholds(thresholdsFile)
			if err != nil {
				return err
			}
			b, err := config.MarshalThresholds(th)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	root.AddCommand(runCmd, thCmd)
	return root
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

// decodeSeries accepts a single series object or an array of them.
func decodeSeries(raw []byte) ([]models.CampaignSeries, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty input")
	}
	if raw[0] == '[' {
		var many []models.CampaignSeries
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decoding series array: %w", err)
		}
		return many, nil
	}
	var one models.CampaignSeries
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decoding series: %w", err)
	}
	return []models.CampaignSeries{one}, nil
}

func writeOut(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
