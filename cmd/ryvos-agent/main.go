// Command ryvos-agent is a minimal demo CLI for the agent core: it wires a
// Runtime against either the real Anthropic provider or the scripted mock,
// a pair of demo tools (shell, read_file), and the in-memory reference
// implementations of every other collaborator, then drives one run (or a
// REPL of runs) to completion while rendering the event bus to the
// terminal.
//
// Grounded on the shape of the teacher's cmd/nexus root command (a small
// buildXxxCmd per subcommand attached to one root, resolveConfigPath-style
// flag plumbing), scaled down from the teacher's dozens of subcommands to
// the handful this module's scope calls for.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ryvos/ryvos-sub000/internal/agent"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ryvos-agent",
		Short:        "Ryvos agent core demo CLI",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildChatCmd())
	return root
}

func registerCommonFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file (defaults built in if omitted)")
	cmd.Flags().StringVar(&opts.workspace, "workspace", ".", "Workspace root the read_file tool is confined to")
	cmd.Flags().BoolVar(&opts.useMock, "mock", false, "Use the scripted mock provider instead of calling Anthropic")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Anthropic API key (default: $ANTHROPIC_API_KEY)")
	cmd.Flags().StringVar(&opts.runlogDir, "runlog-dir", "", "Directory to write one JSONL run log per session/run (disabled if empty)")
}

func buildRunCmd() *cobra.Command {
	var opts runOptions
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run the agent to completion on a single message and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cleanup, err := wireDeps(opts)
			defer cleanup()
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			sub := d.bus.Subscribe()
			done := make(chan struct{})
			go consumeEvents(out, cmd.InOrStdin(), d.broker, sub, done)

			res, runErr := d.runtime.Run(ctx, agent.RunRequest{SessionID: sessionID, RunID: uuid.NewString(), UserMessage: args[0]})
			sub.Unsubscribe()
			<-done

			fmt.Fprintf(out, "\n\n(session: %s, turns: %d, stop: %s)\n", sessionID, res.Turns, res.StopKind)
			if runErr != nil {
				return fmt.Errorf("run: %w", runErr)
			}
			return nil
		},
	}
	registerCommonFlags(cmd, &opts)
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue (default: a fresh session)")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var opts runOptions
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive REPL against one session, reading lines from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cleanup, err := wireDeps(opts)
			defer cleanup()
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s — type a message and press enter, Ctrl-D to quit\n", sessionID)

			return runChatLoop(ctx, cmd, d, sessionID)
		},
	}
	registerCommonFlags(cmd, &opts)
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue (default: a fresh session)")
	return cmd
}

func runChatLoop(ctx context.Context, cmd *cobra.Command, d *deps, sessionID string) error {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()
	scanner := newLineScanner(in)

	for {
		fmt.Fprint(out, "\n> ")
		line, ok := scanner.next()
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		sub := d.bus.Subscribe()
		done := make(chan struct{})
		go consumeEvents(out, in, d.broker, sub, done)

		res, err := d.runtime.Run(ctx, agent.RunRequest{SessionID: sessionID, RunID: uuid.NewString(), UserMessage: line})
		sub.Unsubscribe()
		<-done

		fmt.Fprintf(out, "\n(turns: %d, stop: %s)\n", res.Turns, res.StopKind)
		if err != nil {
			fmt.Fprintf(out, "run error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
