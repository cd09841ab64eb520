package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/coderoom/config"
	"github.com/isdmx/coderoom/depgraph"
	"github.com/isdmx/coderoom/language"
	"github.com/isdmx/coderoom/logger"
	"github.com/isdmx/coderoom/pipeline"
	"github.com/isdmx/coderoom/sandbox"
	"github.com/isdmx/coderoom/workspace"
)

type checkResult struct {
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
	Issues  []string          `json:"issues,omitempty" yaml:"issues,omitempty"`
	Preview *pipeline.Preview `json:"preview,omitempty" yaml:"preview,omitempty"`
	Output  *sandbox.Output   `json:"output,omitempty" yaml:"output,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var (
		format string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "check [request.json]",
		Short: "Run one execution request from a file or stdin and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported output format: %s", format)
			}

			req, err := readRequest(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if mode != "" {
				req.Mode = mode
			}

			svc, err := buildService()
			if err != nil {
				return err
			}

			result, runErr := runCheck(cmd.Context(), svc, req)
			if err := writeResult(cmd.OutOrStdout(), format, result); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&mode, "mode", "", "Override the request mode: execute or preview")

	return cmd
}

func readRequest(stdin io.Reader, args []string) (pipeline.Request, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("cannot read request: %w", err)
	}

	var req pipeline.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid request JSON: %w", err)
	}
	return req, nil
}

// buildService wires the pipeline without the fx app so check stays a one-shot
func buildService() (*pipeline.Service, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := language.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	executor, err := sandbox.NewExecutor(log, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewService(log, registry, workspace.NewManagerFromConfig(log, cfg), executor, depgraph.NewResolver(log)), nil
}

type requestRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// runCheck returns a printable result and a non-nil error when the request failed
func runCheck(ctx context.Context, runner requestRunner, req pipeline.Request) (checkResult, error) {
	resp, err := runner.Run(ctx, req)
	if err != nil {
		result := checkResult{Error: err.Error()}
		var pErr *pipeline.Error
		if errors.As(err, &pErr) {
			result.Issues = pErr.Issues
			result.Output = pErr.Partial
		}
		return result, fmt.Errorf("request failed: %s", pipeline.KindOf(err))
	}
	return checkResult{Preview: resp.Preview, Output: resp.Execution}, nil
}

func writeResult(w io.Writer, format string, result checkResult) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
