package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/dadmind/backend/internal/config"
	"github.com/zhouzirui/dadmind/backend/internal/markdown"
	"github.com/zhouzirui/dadmind/backend/internal/service/ai"
)

var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("212"))
)

// terminalFormat renders bold spans with lipgloss instead of markers.
var terminalFormat = markdown.Format{
	Bold:      func(s string) string { return boldStyle.Render(s) },
	LineBreak: "\n",
	ItemOpen:  "  • ",
	ItemSep:   "\n",
	BlockSep:  "\n\n",
}

type rootOptions struct {
	timeout time.Duration
	verbose bool
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chattester",
		Short: "Manual checks for the DadMind chat pipeline and stress quiz",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 缺失时直接使用系统环境变量
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline internals")

	root.AddCommand(newChatCommand(opts), newQuizCommand(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// loadAI returns nil when no credentials are configured.
func loadAI(ctx context.Context, logger zerolog.Logger) (*config.Config, *ai.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.AI.Enabled() {
		return cfg, nil, nil
	}
	svc, err := ai.NewService(ctx, cfg.AI, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai service: %w", err)
	}
	return cfg, svc, nil
}

func printHeader(title string) {
	fmt.Println(headerStyle.Render(title))
}

func printMarkdown(text string) {
	fmt.Println(terminalFormat.Render(markdown.Parse(text)))
}
