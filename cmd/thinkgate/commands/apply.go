package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/thinkgate/internal/app"
	"github.com/florianilch/thinkgate/internal/hook"
)

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "run the pre-call hooks over one request body and print the result",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "call-type",
				Usage: "call type passed to hooks (anthropic_messages|completion)",
				Value: string(hook.CallTypeAnthropicMessages),
				Validator: func(s string) error {
					switch hook.CallType(s) {
					case hook.CallTypeAnthropicMessages, hook.CallTypeCompletion:
						return nil
					default:
						return fmt.Errorf("unsupported call type: %s", s)
					}
				},
			},
		},
		Action: applyAction,
	}
}

func applyAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return errors.New("apply accepts at most one file")
	}

	cfg, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flushTelemetry(shutdown, cfg.Shutdown.Timeout)

	body, err := readInput(cmd.Args().First(), cmd.Root().Reader)
	if err != nil {
		return err
	}

	chain, err := app.NewChain(cfg)
	if err != nil {
		return err
	}

	var req hook.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("request must be a JSON object: %w", err)
	}

	cache := hook.NewMemoryCache(cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval)
	caller := hook.Caller{RequestID: uuid.NewString()}

	out, err := chain.Run(ctx, caller, cache, &req, hook.CallType(cmd.String("call-type")))
	if err != nil {
		return fmt.Errorf("pre-call hooks rejected request: %w", err)
	}

	return writeRequest(cmd.Root().Writer, out)
}

// readInput reads the named file, or r when path is empty or "-".
func readInput(path string, r io.Reader) ([]byte, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading request file: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading request from stdin: %w", err)
	}
	return data, nil
}

// writeRequest prints req as JSON, indented when w is a terminal.
func writeRequest(w io.Writer, req *hook.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err == nil {
			data = indented.Bytes()
		}
	}

	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
