package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/logging"
	"github.com/ZacxDev/scrambleclip/pkg/scrambler"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "scrambleclip",
		Short: "Scrambled short-form remixes from your videos",
		Long: `scrambleclip cuts short, non-repeating segments out of a set of input videos
and stitches them into 16 second vertical remixes.

Examples:
  # Three remixes with effects and a caption
  scrambleclip generate -o ./output -n 3 --effects --text "NEW DROP" clip1.mp4 clip2.mp4

  # Score a segment
  scrambleclip analyze clip1.mp4 --start 2 --end 4`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logging.Init(verbose)

			configPath, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate [videos...]",
		Short: "Generate scrambled remixes from input videos",
		Long: fmt.Sprintf(`Generate a batch of 16 second 1080x1920 remixes. Segments are never reused
across the batch.

Supported platforms:
%s
Example:
  scrambleclip generate -o ./output -n 5 -a music.mp3 -t youtube-shorts *.mp4`,
			formatSupportedPlatforms()),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyGenerateFlags(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bar := progressbar.NewOptions(100,
				progressbar.OptionSetDescription("Starting"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "▐",
					BarEnd:        "▌",
				}),
				progressbar.OptionSetWidth(50),
				progressbar.OptionSetRenderBlankState(true),
			)

			paths, err := scrambler.Generate(ctx, &scrambler.GenerateOptions{
				InputPaths: args,
				Config:     cfg,
				Progress: func(percent int, message string) {
					bar.Describe(message)
					bar.Set(percent)
				},
			})
			bar.Finish()
			fmt.Fprintln(os.Stderr)

			for _, p := range paths {
				fmt.Println(p)
			}
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no videos were generated")
			}
			return nil
		},
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze VIDEO",
		Short: "Score a segment and optionally compare it with another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &scrambler.AnalyzeOptions{InputPath: args[0], Config: cfg}
			opts.Start, _ = cmd.Flags().GetFloat64("start")
			opts.End, _ = cmd.Flags().GetFloat64("end")
			opts.AgainstPath, _ = cmd.Flags().GetString("against")
			opts.AgainstStart, _ = cmd.Flags().GetFloat64("against-start")
			opts.AgainstEnd, _ = cmd.Flags().GetFloat64("against-end")

			res, err := scrambler.Analyze(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fmt.Printf("interestingness: %.3f\n", res.Interestingness)
			if res.Similarity != nil {
				fmt.Printf("similarity:      %.3f\n", *res.Similarity)
			}
			return nil
		},
	}

	signaturesCmd = &cobra.Command{
		Use:   "signatures VIDEO...",
		Short: "Print the colour signature of each video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs, err := scrambler.Signatures(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			for _, s := range sigs {
				values := make([]string, len(s.Signature))
				for i, v := range s.Signature {
					values[i] = fmt.Sprintf("%.1f", v)
				}
				fmt.Printf("%s: [%s]\n", s.Path, strings.Join(values, " "))
			}
			return nil
		},
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the current configuration to a YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scrambleclip.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := cfg.Save(path); err != nil {
				return errors.Wrapf(err, "failed to write %s", path)
			}
			fmt.Println(path)
			return nil
		},
	}

	platformsCmd = &cobra.Command{
		Use:   "platforms",
		Short: "List supported target platforms",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(formatSupportedPlatforms())
		},
	}
)

func formatSupportedPlatforms() string {
	platforms := scrambler.GetSupportedPlatforms()
	var sb strings.Builder
	for _, platform := range platforms {
		sb.WriteString(fmt.Sprintf("- %s\n", platform))
	}
	return sb.String()
}

// applyGenerateFlags overrides config values with the flags that were set
func applyGenerateFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("output") {
		c.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("count") {
		c.Output.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("target-platform") {
		c.Output.Platform, _ = flags.GetString("target-platform")
	}
	if flags.Changed("prefix") {
		c.Output.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("audio") {
		c.Audio.Paths, _ = flags.GetStringSlice("audio")
	}
	if flags.Changed("effects") {
		c.Effects.Enabled, _ = flags.GetBool("effects")
	}
	if flags.Changed("text") {
		text, _ := flags.GetString("text")
		c.Text.Content = strings.ReplaceAll(text, `\n`, "\n")
		c.Text.Enabled = c.Text.Content != ""
	}
	if flags.Changed("text-color") {
		c.Text.Color, _ = flags.GetString("text-color")
	}
	if flags.Changed("stroke-color") {
		c.Text.StrokeColor, _ = flags.GetString("stroke-color")
	}
	if flags.Changed("font-size") {
		c.Text.FontSize, _ = flags.GetInt("font-size")
	}
	if flags.Changed("stroke-width") {
		c.Text.StrokeWidth, _ = flags.GetInt("stroke-width")
	}
	if flags.Changed("opacity") {
		c.Text.Opacity, _ = flags.GetFloat64("opacity")
	}
	if flags.Changed("rank") {
		c.Selection.RankCandidates, _ = flags.GetBool("rank")
	}
	if flags.Changed("allow-overlap") {
		c.Selection.AllowOverlapFallback, _ = flags.GetBool("allow-overlap")
	}
	if flags.Changed("seed") {
		c.Seed, _ = flags.GetUint64("seed")
	}

	return c.Validate()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./scrambleclip.yaml or ~/.scrambleclip/config.yaml)")

	// Generate command flags
	generateCmd.Flags().StringP("output", "o", "", "Output directory")
	generateCmd.Flags().IntP("count", "n", 1, "Number of videos to generate")
	generateCmd.Flags().StringP("target-platform", "t", "",
		fmt.Sprintf("Target platform (%s)", strings.Join(scrambler.GetSupportedPlatforms(), ", ")))
	generateCmd.Flags().String("prefix", "", "Output file name prefix")
	generateCmd.Flags().StringSliceP("audio", "a", nil, "Audio tracks, one picked at random per video")
	generateCmd.Flags().Bool("effects", false, "Apply random segment effects and fades")
	generateCmd.Flags().String("text", "", "Text overlay (use \\n for line breaks)")
	generateCmd.Flags().String("text-color", "", "Text colour (#rrggbb or a colour name)")
	generateCmd.Flags().String("stroke-color", "", "Text stroke colour")
	generateCmd.Flags().Int("font-size", 0, "Text font size")
	generateCmd.Flags().Int("stroke-width", 0, "Text stroke width")
	generateCmd.Flags().Float64("opacity", 1, "Text opacity from 0 to 1")
	generateCmd.Flags().Bool("rank", false, "Rank candidate segments by content")
	generateCmd.Flags().Bool("allow-overlap", false, "Reuse footage with least overlap when a slot cannot be filled")
	generateCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")

	// Analyze command flags
	analyzeCmd.Flags().Float64("start", 0, "Segment start in seconds")
	analyzeCmd.Flags().Float64("end", 0, "Segment end in seconds")
	analyzeCmd.Flags().String("against", "", "Second video to compare with")
	analyzeCmd.Flags().Float64("against-start", 0, "Start of the second segment")
	analyzeCmd.Flags().Float64("against-end", 0, "End of the second segment")

	analyzeCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
