package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vk/paramcascade/internal/model"
)

// Commands accepted by Run.
const (
	CommandPropagate    = "propagate"
	CommandDesignate    = "designate"
	CommandDrawings     = "drawings"
	CommandFlatPatterns = "flat-patterns"
	CommandAll          = "all"
	CommandHistory      = "history"
)

// Commands lists every command in the order shown to the operator.
var Commands = []string{
	CommandPropagate, CommandDesignate, CommandDrawings, CommandFlatPatterns, CommandAll, CommandHistory,
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command     string
	ProjectRoot string
	Params      model.Params
	Prefix      string
	Order       string

	FamilyPath string // hcl files; empty selects the built-in family

	// Exactly one CAD backend: a simulated world materialised into the
	// project root, or a socket.io bridge.
	FixturePath        string
	BridgeURL          string
	BridgeNamespace    string
	InsecureSkipVerify bool
	CallTimeout        time.Duration

	JournalPath string
	PacerScale  float64
	Attempts    int

	LogFormat       string
	LogLevel        string
	LogFile         string
	HealthcheckPort int
}

// NewConfig validates cfg for its command.
func NewConfig(cfg Config) (*Config, error) {
	if !slices.Contains(Commands, cfg.Command) {
		return nil, fmt.Errorf("unknown command %q (want one of: %s)", cfg.Command, strings.Join(Commands, ", "))
	}

	if cfg.Command == CommandHistory {
		if cfg.JournalPath == "" {
			return nil, errors.New("history needs a journal path")
		}
		return &cfg, nil
	}

	if cfg.ProjectRoot == "" {
		return nil, errors.New("ProjectRoot is a required configuration field and cannot be empty")
	}
	switch {
	case cfg.FixturePath == "" && cfg.BridgeURL == "":
		return nil, errors.New("either a fixture or a bridge URL is required")
	case cfg.FixturePath != "" && cfg.BridgeURL != "":
		return nil, errors.New("fixture and bridge URL are mutually exclusive")
	}
	if cfg.PacerScale < 0 {
		return nil, fmt.Errorf("pacer scale must not be negative, got %v", cfg.PacerScale)
	}

	switch cfg.Command {
	case CommandPropagate:
		if err := cfg.Params.Validate(); err != nil {
			return nil, err
		}
	case CommandDesignate, CommandAll:
		if err := cfg.Params.Validate(); err != nil {
			return nil, err
		}
		if cfg.Prefix == "" {
			return nil, errors.New("project prefix is required")
		}
	}
	return &cfg, nil
}
