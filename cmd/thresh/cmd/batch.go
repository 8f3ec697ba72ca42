package cmd

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/thresh/internal/config"
	"github.com/MeKo-Tech/thresh/internal/pipeline"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Threshold many images in parallel",
	Long: `Threshold multiple image files or directories in parallel. Directories
are expanded to the supported images they contain; with --recursive the
expansion walks subdirectories too.

Supported formats: JPEG, PNG, BMP

Examples:
  thresh batch *.png
  thresh batch images/ --recursive --workers 8
  thresh batch a.png b.png --format json --output results.json
  thresh batch images/ --progress --binary-dir out/`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// applyThresholdFlagOverrides copies changed engine flags onto the loaded
// configuration. CLI flags beat config file and environment values.
func applyThresholdFlagOverrides(cmd *cobra.Command, tc *config.ThresholdConfig) {
	if cmd.Flags().Changed("strategy") {
		tc.Strategy, _ = cmd.Flags().GetString("strategy")
	}
	if cmd.Flags().Changed("method") {
		tc.Method, _ = cmd.Flags().GetString("method")
	}
	if cmd.Flags().Changed("threshold") {
		tc.SuppliedThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("smoothing") {
		tc.SmoothingScale, _ = cmd.Flags().GetFloat64("smoothing")
	}
	if cmd.Flags().Changed("log") {
		tc.LogTransform, _ = cmd.Flags().GetBool("log")
	}
	if cmd.Flags().Changed("correction") {
		tc.CorrectionFactor, _ = cmd.Flags().GetFloat64("correction")
	}
	if cmd.Flags().Changed("min") {
		tc.MinThreshold, _ = cmd.Flags().GetFloat64("min")
	}
	if cmd.Flags().Changed("max") {
		tc.MaxThreshold, _ = cmd.Flags().GetFloat64("max")
	}
	if cmd.Flags().Changed("window") {
		tc.WindowSize, _ = cmd.Flags().GetInt("window")
	}
	if cmd.Flags().Changed("volumetric") {
		tc.Volumetric, _ = cmd.Flags().GetBool("volumetric")
	}
	if cmd.Flags().Changed("three-class") {
		tc.OtsuThreeClass, _ = cmd.Flags().GetBool("three-class")
	}
	if cmd.Flags().Changed("middle-foreground") {
		tc.OtsuMiddleIsFG, _ = cmd.Flags().GetBool("middle-foreground")
	}
	if cmd.Flags().Changed("lower-outlier") {
		tc.LowerOutlierFrac, _ = cmd.Flags().GetFloat64("lower-outlier")
	}
	if cmd.Flags().Changed("upper-outlier") {
		tc.UpperOutlierFrac, _ = cmd.Flags().GetFloat64("upper-outlier")
	}
	if cmd.Flags().Changed("averaging") {
		tc.Averaging, _ = cmd.Flags().GetString("averaging")
	}
	if cmd.Flags().Changed("variance") {
		tc.Variance, _ = cmd.Flags().GetString("variance")
	}
	if cmd.Flags().Changed("deviations") {
		tc.NumberOfDeviations, _ = cmd.Flags().GetFloat64("deviations")
	}
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyThresholdFlagOverrides(cmd, &cfg.Threshold)

	workers := cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	recursive := cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		recursive, _ = cmd.Flags().GetBool("recursive")
	}
	continueOnError := cfg.Batch.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	showProgress, _ := cmd.Flags().GetBool("progress")

	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	outputFile := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outputFile, _ = cmd.Flags().GetString("output")
	}
	binaryDir := cfg.Output.BinaryDir
	if cmd.Flags().Changed("binary-dir") {
		binaryDir, _ = cmd.Flags().GetString("binary-dir")
	}
	saveSurface := cfg.Output.SaveSurface
	if cmd.Flags().Changed("save-surface") {
		saveSurface, _ = cmd.Flags().GetBool("save-surface")
	}
	if !isValidOutputFormat(format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)",
			format, outputFormatText, outputFormatJSON)
	}

	params, err := cfg.Threshold.ToParams()
	if err != nil {
		return fmt.Errorf("invalid threshold parameters: %w", err)
	}

	pl, err := pipeline.New(params)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	paths, err := pipeline.DiscoverImages(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported images found in %d input(s)", len(args))
	}

	pcfg := pipeline.DefaultParallelConfig()
	if workers > 0 {
		pcfg.MaxWorkers = workers
	}
	pcfg.ContinueOnError = continueOnError
	if showProgress {
		pcfg.ProgressCallback = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "thresholding")
	}

	start := time.Now()
	results, err := pl.ProcessFilesParallel(cmd.Context(), paths, pcfg)
	if err != nil && !continueOnError {
		return err
	}

	if binaryDir != "" {
		for _, res := range results {
			if res == nil {
				continue
			}
			if werr := writeBinary(binaryDir, res, saveSurface); werr != nil {
				return werr
			}
		}
	}

	final, rerr := renderResults(results, format)
	if rerr != nil {
		return rerr
	}
	if werr := writeOutput(cmd, final, outputFile); werr != nil {
		return werr
	}

	stats := pipeline.CalculateBatchStats(results, time.Since(start), pcfg.MaxWorkers)
	if _, perr := fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d/%d image(s) in %s (%.1f images/s)\n",
		stats.ProcessedFiles, stats.TotalFiles, stats.TotalDuration.Round(time.Millisecond),
		stats.ThroughputPerSec); perr != nil {
		return perr
	}

	// Failures were tolerated above; still report the first one.
	return err
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addThresholdFlags(batchCmd)
	addOutputFlags(batchCmd)

	batchCmd.Flags().Int("workers", 0, "number of parallel workers (0=all CPUs)")
	batchCmd.Flags().BoolP("recursive", "r", false, "recurse into directories")
	batchCmd.Flags().Bool("continue-on-error", true, "keep processing after individual failures")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
}

// GetBatchCommand returns the batch command for testing purposes.
func GetBatchCommand() *cobra.Command {
	return batchCmd
}
