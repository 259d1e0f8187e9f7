package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/paramcascade/internal/app"
	"github.com/vk/paramcascade/internal/cascade"
	"github.com/vk/paramcascade/internal/model"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("paramcascade", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
paramcascade - Re-parameterizes a convector project in a KOMPAS-style CAD application.

Usage:
  paramcascade [options] COMMAND [PROJECT_DIR]

Commands:
  %s

Arguments:
  PROJECT_DIR
    Directory holding the assembly, its parts, drawings and DXF/ flat patterns.

Options:
`, strings.Join(app.Commands, ", "))
		flagSet.PrintDefaults()
	}

	hFlag := flagSet.Int("H", 0, "Height H in millimetres.")
	b1Flag := flagSet.Int("B1", 0, "Width B1 in millimetres.")
	l1Flag := flagSet.Int("L1", 0, "Length L1 in millimetres.")
	prefixFlag := flagSet.String("prefix", "", "Project prefix (product line), e.g. ZVD.LITE.")
	orderFlag := flagSet.String("order", "", "Order number appended to part names and flat patterns.")
	projectFlag := flagSet.String("project", "", "Project directory (alternative to PROJECT_DIR).")
	familyFlag := flagSet.String("family", "", "Path to a product family .hcl file or directory. Empty uses the built-in family.")
	fixtureFlag := flagSet.String("fixture", "", "Simulate the CAD application with the documents of this .hcl fixture.")
	bridgeFlag := flagSet.String("bridge-url", "", "URL of the socket.io CAD bridge.")
	namespaceFlag := flagSet.String("bridge-namespace", "/", "Socket.io namespace of the CAD bridge.")
	insecureFlag := flagSet.Bool("insecure-skip-verify", false, "Skip TLS certificate verification for the bridge.")
	callTimeoutFlag := flagSet.Duration("call-timeout", 60*time.Second, "Timeout of a single bridge call.")
	journalFlag := flagSet.String("journal", "", "Path to the SQLite run journal. Empty disables journaling.")
	pacerFlag := flagSet.Float64("pacer-scale", 1, "Multiplier for every settle delay. 0 disables delays.")
	attemptsFlag := flagSet.Int("attempts", cascade.DefaultAttempts, "Sessions a pass may use before giving up on a lost connection.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFileFlag := flagSet.String("log-file", "", "Also append the log to this file.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	command := strings.ToLower(flagSet.Arg(0))

	root := *projectFlag
	if root == "" && flagSet.NArg() > 1 {
		root = flagSet.Arg(1)
	}
	slog.Debug("Project root determined.", "command", command, "root", root)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:            command,
		ProjectRoot:        root,
		Params:             model.Params{H: *hFlag, B1: *b1Flag, L1: *l1Flag},
		Prefix:             *prefixFlag,
		Order:              strings.TrimSpace(*orderFlag),
		FamilyPath:         *familyFlag,
		FixturePath:        *fixtureFlag,
		BridgeURL:          *bridgeFlag,
		BridgeNamespace:    *namespaceFlag,
		InsecureSkipVerify: *insecureFlag,
		CallTimeout:        *callTimeoutFlag,
		JournalPath:        *journalFlag,
		PacerScale:         *pacerFlag,
		Attempts:           *attemptsFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
		LogFile:            *logFileFlag,
		HealthcheckPort:    *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
