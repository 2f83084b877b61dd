// Command debate runs a live debate against the writing assistant's
// debate room API and renders the transcript as it streams in.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/storyloom/debatestream/internal/config"
	"github.com/storyloom/debatestream/internal/debate"
	"github.com/storyloom/debatestream/internal/telemetry"
)

var (
	flagConfig  string
	flagBaseURL string
	flagProject string
	flagTopic   string
	flagQuote   string
	flagTrace   bool
)

var (
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	systemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
)

var rootCmd = &cobra.Command{
	Use:   "debate",
	Short: "Client for the writing assistant's live debate room",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a debate and stream the transcript",
	RunE:  runDebate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "Emit OpenTelemetry spans to stdout")
	runCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Debate room API endpoint")
	runCmd.Flags().StringVar(&flagProject, "project", "", "Project id to debate in")
	runCmd.Flags().StringVar(&flagTopic, "topic", "", "Free-form topic text")
	runCmd.Flags().StringVar(&flagQuote, "quote", "", "Quoted reference text")
	rootCmd.AddCommand(runCmd)
}

func runDebate(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	baseURL := cfg.Server.BaseURL
	if flagBaseURL != "" {
		baseURL = flagBaseURL
	}
	project := cfg.Project.ID
	if flagProject != "" {
		project = flagProject
	}

	if flagTrace {
		shutdown, err := telemetry.InitTracer("debate-cli", logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	// The quote travels through the same inbox the selection UI uses.
	inbox := debate.NewQuoteInbox()
	if flagQuote != "" {
		inbox.Offer(flagQuote)
	}
	quoted, _ := inbox.Take()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Server.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.Timeout)
		defer cancel()
	}

	client := debate.NewClient(
		debate.WithBaseURL(baseURL),
		debate.WithLogger(logger),
	)

	session, err := client.Begin(ctx, debate.Request{
		ProjectID:  project,
		FreeText:   flagTopic,
		QuotedText: quoted,
	})
	if err != nil {
		if errors.Is(err, debate.ErrMissingProject) {
			return errors.New("no project id: pass --project or set project.id in config")
		}
		if errors.Is(err, debate.ErrEmptyTopic) {
			return errors.New("nothing to debate: pass --topic and/or --quote")
		}
		return err
	}

	render(cmd.OutOrStdout(), session)

	if outcome := session.Outcome(); !outcome.Completed() {
		return fmt.Errorf("debate ended early: %w", outcome.Err)
	}
	return nil
}

// render prints each message once: a speaker header when it first
// appears, the body once it completes. Anything still open when the
// stream ends is printed as in-progress.
func render(w io.Writer, session *debate.Session) {
	announced := make(map[string]bool)
	printed := make(map[string]bool)

	var last []debate.Message
	for snap := range session.Updates() {
		last = snap
		for _, m := range snap {
			if !announced[m.ID] {
				announced[m.ID] = true
				if m.Category == debate.CategoryAgent {
					fmt.Fprintln(w, speakerStyle.Render(displayName(m)))
				}
			}
			if m.Complete && !printed[m.ID] {
				printed[m.ID] = true
				if m.Category == debate.CategorySystem {
					fmt.Fprintln(w, systemStyle.Render(m.Text))
				} else {
					fmt.Fprintln(w, m.Text)
				}
				fmt.Fprintln(w)
			}
		}
	}

	for _, m := range last {
		if !m.Complete {
			fmt.Fprintln(w, pendingStyle.Render(m.Text+" …(未完成)"))
		}
	}
}

func displayName(m debate.Message) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Speaker
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
