package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/profiled/internal/convlog"
	"github.com/fyrsmithlabs/profiled/internal/engine"
	"github.com/fyrsmithlabs/profiled/internal/extract"
	"github.com/fyrsmithlabs/profiled/internal/profile"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

var turnSession string

func init() {
	turnCmd.Flags().StringVar(&turnSession, "session", "", "Session identifier (required)")
	_ = turnCmd.MarkFlagRequired("session")
}

var turnCmd = &cobra.Command{
	Use:   "turn --session <id> <utterance>",
	Short: "Feed one user message through the collection pipeline",
	Long: `Process a single user message for a session: extract a value for the
slot currently being solicited, apply it to the session's state, and
append the exchange to the conversation log. Prints the turn outcome as
JSON. Useful for exercising the pipeline without a connected dialogue
policy.

Examples:
  # Start a conversation
  profilectl turn --session sess-1 "hello"

  # Answer the current prompt
  profilectl turn --session sess-1 "I am 25 years old"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func runTurn(cmd *cobra.Command, args []string) error {
	cfg, logger, store, err := newStack()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := profile.NewRegistry()

	var resolver extract.Resolver
	if cfg.Service.URL != "" {
		resolver, err = extract.NewHTTPResolver(cfg.Service)
		if err != nil {
			return err
		}
	}
	extractor, err := extract.New(registry, resolver, cfg.ExtractConfig(), logger.Named("extract"))
	if err != nil {
		return err
	}

	machine := stage.NewMachine(registry, logger.Named("stage"))
	svc, err := engine.NewService(extractor, machine, store, logger.Named("engine"))
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	if err := svc.Resume(ctx, turnSession); err != nil {
		var nf *convlog.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		if err := svc.StartSession(ctx, turnSession); err != nil {
			return err
		}
	}

	result, err := svc.ProcessTurn(ctx, &engine.TurnRequest{
		SessionID: turnSession,
		Utterance: strings.Join(args, " "),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
