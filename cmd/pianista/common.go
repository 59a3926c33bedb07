package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pianista-dev/pianista"
	"github.com/pianista-dev/pianista/api"
	"github.com/pianista-dev/pianista/config"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// newLogger creates the CLI logger from the --log-level and --log-format flags.
// Logs go to stderr so stdout stays clean for results.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", levelName)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected text or json)", format)
	}
}

// loadConfig reads the -c file, or the defaults when none is given, and
// applies the --api-url and --api-key overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if u, _ := cmd.Flags().GetString("api-url"); u != "" {
		cfg.API.BaseURL = u
	}
	if k, _ := cmd.Flags().GetString("api-key"); k != "" {
		cfg.API.APIKey = k
	}
	return cfg, nil
}

// env bundles what most subcommands need.
type env struct {
	cfg    *config.Config
	client *api.Client
	logger *slog.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := config.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	logger.Debug("api client ready", "base_url", client.BaseURL())
	return &env{cfg: cfg, client: client, logger: logger}, nil
}

// readInput returns the contents of path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", displayName(path), err)
	}
	return string(data), nil
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// friendlyError turns API errors into the messages users see in the web
// front-end, keeping the original error for errors.Is/As.
func friendlyError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *api.APIError
	if api.IsTransportError(err) || errors.As(err, &apiErr) {
		return fmt.Errorf("%s (%w)", api.StatusMessage(err, op), err)
	}
	return err
}

// statusColor picks the color used to print a job status.
func statusColor(s pianista.Status) *color.Color {
	switch s {
	case pianista.StatusSucceeded:
		return successColor
	case pianista.StatusFailed:
		return failColor
	case pianista.StatusCancelled:
		return dimColor
	default:
		return warnColor
	}
}

// writeJSON prints v as indented JSON. Raw JSON bytes are re-indented.
func writeJSON(w io.Writer, v any) error {
	if raw, ok := v.([]byte); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			_, err = fmt.Fprintln(w, strings.TrimSpace(string(raw)))
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
