package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
)

// NewPlayCmd runs a single quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var setID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if setID == "" {
				setID = cfg.Quiz.DefaultSet
			}
			if setID == "" {
				setID = "sample"
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			st, err := buildStack(cmd.Context(), cfg, logger, nil, false)
			if err != nil {
				return err
			}
			defer st.Close()
			return playSession(cmd.Context(), st, setID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&setID, "set", "", "question set to play")
	return cmd
}

func playSession(ctx context.Context, st *stack, setID string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionID := app.NewSessionID()
	reports, err := st.bus.Subscribe(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := st.service.Open(ctx, sessionID, setID); err != nil {
		return err
	}
	defer st.service.Close(context.Background(), sessionID)

	updates, unsubscribe, err := st.service.Subscribe(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	r := &renderer{out: out}
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				r.render(snap)
			case report, ok := <-reports:
				if !ok {
					reports = nil
					continue
				}
				r.report(report.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if line == "q" || line == "quit" {
			break
		}
		if err := dispatchCommand(ctx, st.service, sessionID, line); err != nil {
			r.report(err.Error())
		}
	}

	cancel()
	<-renderDone
	return scanner.Err()
}

func dispatchCommand(ctx context.Context, service *app.QuizService, sessionID, line string) error {
	var err error
	switch line {
	case "":
		return nil
	case "s", "start":
		_, err = service.Start(ctx, sessionID)
	case "n", "next":
		_, err = service.Advance(ctx, sessionID)
	case "r", "restart":
		_, err = service.Restart(ctx, sessionID)
	default:
		choice, convErr := strconv.Atoi(line)
		if convErr != nil {
			return fmt.Errorf("unknown command %q (s, 1-9, n, r, q)", line)
		}
		_, err = service.Answer(ctx, sessionID, choice-1)
	}
	return err
}
