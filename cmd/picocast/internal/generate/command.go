package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/pkg/audio"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/session"
	"github.com/sipeed/picocast/pkg/voice"
)

type options struct {
	files   []string
	turns   int
	minutes int
	dryRun  bool
	output  string
	asJSON  bool
	debug   bool
}

func NewGenerateCommand() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate a podcast episode from metrics files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), o)
		},
	}

	cmd.Flags().StringSliceVarP(&o.files, "file", "f", nil, "Metrics JSON file (repeatable, - for stdin)")
	cmd.Flags().IntVarP(&o.turns, "turns", "t", 0, "Total turns including intro and closing (3-24)")
	cmd.Flags().IntVarP(&o.minutes, "minutes", "m", 0, "Maximum episode length in minutes (1-5)")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Render silence instead of calling the speech provider")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Directory for the .wav and .txt artifacts")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&o.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func run(ctx context.Context, out io.Writer, o options) error {
	docs, err := internal.ReadDocuments(o.files)
	if err != nil {
		return err
	}

	cfg, err := internal.LoadConfig(o.debug)
	if err != nil {
		return err
	}
	if o.output != "" {
		cfg.Storage.OutputDir = o.output
	}

	store, err := internal.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open session ledger: %w", err)
	}
	buildOpts := []session.BuildOption{}
	if store != nil {
		defer store.Close()
		buildOpts = append(buildOpts, session.WithStore(store))
	}
	if o.dryRun {
		format := voice.DefaultFormat
		format.SampleRate = cfg.Speech.SampleRate
		buildOpts = append(buildOpts, session.WithSynthesizer(voice.NewSilentSynthesizer(format, cfg.Speech.WordsPerMinute)))
	}

	runner, err := session.NewRunnerFromConfig(cfg, buildOpts...)
	if err != nil {
		return err
	}

	turns := config.ClampTurns(o.turns)
	if o.turns == 0 {
		turns = cfg.Show.TurnBudget
	}
	capSeconds := config.ClampMinutes(o.minutes) * 60
	if o.minutes == 0 {
		capSeconds = cfg.Show.DurationCapSeconds
	}

	res, err := runner.Run(ctx, docs, turns, capSeconds)
	if err != nil {
		return err
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res *session.Result) {
	fmt.Fprintf(out, "%s Episode %s\n\n", internal.Logo, res.ID)
	fmt.Fprint(out, audio.FormatTranscript(res.Lines))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Turns:    %d\n", len(res.Transcript))
	fmt.Fprintf(out, "Segments: %d\n", len(res.Audio))
	fmt.Fprintf(out, "Duration: %.1fs\n", res.Duration.Seconds())
	if res.CoverageMismatch {
		fmt.Fprintf(out, "Warning: audio covers %d of %d turns", len(res.Audio), len(res.Transcript))
		if len(res.Skipped) > 0 {
			fmt.Fprintf(out, " (skipped %v)", res.Skipped)
		}
		fmt.Fprintln(out)
		for _, g := range res.Gaps {
			fmt.Fprintf(out, "  turn %d: %s\n", g.TurnIndex, g.Error)
		}
	}
	if res.Artifacts.AudioPath != "" {
		fmt.Fprintf(out, "Audio:      %s\n", res.Artifacts.AudioPath)
		fmt.Fprintf(out, "Transcript: %s\n", res.Artifacts.TranscriptPath)
	}
}
