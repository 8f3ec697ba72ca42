package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/thresh/internal/pipeline"
	"github.com/MeKo-Tech/thresh/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Threshold images and report segmentation measurements",
	Long: `Threshold one or more image files and report the computed thresholds
together with quality measurements.

Supported formats: JPEG, PNG, BMP

Examples:
  thresh image cells.png
  thresh image *.png --method otsu --format json
  thresh image nuclei.jpg --strategy adaptive --window 64 --binary-dir out/`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Help handling for tests
		if len(args) > 0 && (args[0] == "--help" || args[0] == "-h") {
			return cmd.Help()
		}
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		// Get configuration (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()

		format := cfg.Output.Format
		outputFile := cfg.Output.File
		binaryDir := cfg.Output.BinaryDir
		saveSurface := cfg.Output.SaveSurface
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

		var results []*pipeline.FileResult
		for _, pth := range args {
			if !utils.IsSupportedImage(pth) {
				return fmt.Errorf("unsupported image format: %s", pth)
			}
			res, err := pl.ProcessFile(cmd.Context(), pth)
			if err != nil {
				return fmt.Errorf("thresholding failed for %s: %w", pth, err)
			}
			if binaryDir != "" {
				if err := writeBinary(binaryDir, res, saveSurface); err != nil {
					return err
				}
			}
			results = append(results, res)
		}

		final, err := renderResults(results, format)
		if err != nil {
			return err
		}
		return writeOutput(cmd, final, outputFile)
	},
}

// isValidOutputFormat reports whether format names a supported serialization.
func isValidOutputFormat(format string) bool {
	return format == outputFormatText || format == outputFormatJSON
}

// renderResults serializes results in the requested format.
func renderResults(results []*pipeline.FileResult, format string) (string, error) {
	if format == outputFormatJSON {
		s, err := pipeline.ToJSONResults(results)
		if err != nil {
			return "", fmt.Errorf("format json failed: %w", err)
		}
		return s, nil
	}
	s, err := pipeline.ToTextResults(results)
	if err != nil {
		return "", fmt.Errorf("format text failed: %w", err)
	}
	return s, nil
}

// writeBinary saves the segmentation, and optionally the threshold surface,
// next to the input's base name.
func writeBinary(dir string, res *pipeline.FileResult, saveSurface bool) error {
	base := filepath.Base(res.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	out := filepath.Join(dir, stem+"_binary.png")
	if err := utils.SaveBinaryPNG(res.Binary, res.Width, res.Height, out); err != nil {
		return fmt.Errorf("failed to save binary for %s: %w", res.Path, err)
	}
	if saveSurface {
		out = filepath.Join(dir, stem+"_surface.png")
		if err := utils.SaveSurfacePNG(res.Surface, res.Width, res.Height, out); err != nil {
			return fmt.Errorf("failed to save surface for %s: %w", res.Path, err)
		}
	}
	return nil
}

// writeOutput sends the rendered results to a file or stdout.
func writeOutput(cmd *cobra.Command, final, outputFile string) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(final), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
			return err
		}
		return nil
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), final); err != nil {
		return fmt.Errorf("failed to write final output: %w", err)
	}
	return nil
}

// addThresholdFlags registers the engine parameter flags shared by the image,
// batch and serve commands.
func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "global", "thresholding strategy (global, adaptive)")
	cmd.Flags().StringP("method", "m", "li", "threshold method (li, otsu, multiotsu, robust_background, sauvola, manual, measurement)")
	cmd.Flags().Float64("threshold", 0.5, "supplied threshold for manual and measurement sources")
	cmd.Flags().Float64("smoothing", 0, "Gaussian smoothing scale applied before thresholding (0=off)")
	cmd.Flags().Bool("log", false, "threshold in log space (Li and Otsu only)")
	cmd.Flags().Float64("correction", 1.0, "threshold correction factor")
	cmd.Flags().Float64("min", 0.0, "lower bound for the final threshold")
	cmd.Flags().Float64("max", 1.0, "upper bound for the final threshold")
	cmd.Flags().IntP("window", "w", 50, "adaptive window size in pixels")
	cmd.Flags().Bool("volumetric", false, "treat the input as a stack of planes")
	cmd.Flags().Bool("three-class", false, "use three-class Otsu")
	cmd.Flags().Bool("middle-foreground", false, "assign the middle Otsu class to foreground")
	cmd.Flags().Float64("lower-outlier", 0.05, "robust background lower outlier fraction")
	cmd.Flags().Float64("upper-outlier", 0.05, "robust background upper outlier fraction")
	cmd.Flags().String("averaging", "mean", "robust background averaging (mean, median, mode)")
	cmd.Flags().String("variance", "sd", "robust background spread (sd, mad)")
	cmd.Flags().Float64("deviations", 2, "robust background number of deviations")
}

// bindThresholdFlags binds engine flags to viper configuration keys.
func bindThresholdFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"threshold.strategy", "strategy"},
		{"threshold.method", "method"},
		{"threshold.supplied_threshold", "threshold"},
		{"threshold.smoothing_scale", "smoothing"},
		{"threshold.log_transform", "log"},
		{"threshold.correction_factor", "correction"},
		{"threshold.min_threshold", "min"},
		{"threshold.max_threshold", "max"},
		{"threshold.window_size", "window"},
		{"threshold.volumetric", "volumetric"},
		{"threshold.otsu_three_class", "three-class"},
		{"threshold.otsu_middle_is_foreground", "middle-foreground"},
		{"threshold.lower_outlier_fraction", "lower-outlier"},
		{"threshold.upper_outlier_fraction", "upper-outlier"},
		{"threshold.averaging", "averaging"},
		{"threshold.variance", "variance"},
		{"threshold.number_of_deviations", "deviations"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

// addOutputFlags registers the output flags shared by the image and batch
// commands.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("binary-dir", "", "directory to write binary segmentation PNGs")
	cmd.Flags().Bool("save-surface", false, "also write the threshold surface PNG alongside each binary")
}

// bindOutputFlags binds output flags to viper configuration keys.
func bindOutputFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.binary_dir", "binary-dir"},
		{"output.save_surface", "save-surface"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addThresholdFlags(imageCmd)
	bindThresholdFlags(imageCmd)
	addOutputFlags(imageCmd)
	bindOutputFlags(imageCmd)

	// Ensure subcommand help prints expected sections when executed directly in tests
	imageCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintln(out, cmd.Short); err != nil {
			return
		}
		if _, err := fmt.Fprintln(out, "Usage:"); err != nil {
			return
		}
		_, _ = fmt.Fprintln(out, cmd.UseLine())
		_, _ = fmt.Fprintln(out, "Flags:")
		_, _ = fmt.Fprintln(out, cmd.Flags().FlagUsages())
	})
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
