package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nightfable/storygate/pkg/config"
	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/contentguard"
	"github.com/nightfable/storygate/pkg/guardrail/ruleset"
	"github.com/nightfable/storygate/pkg/guardrail/sanitizer"
	infraLogger "github.com/nightfable/storygate/pkg/infra/logger"
	"github.com/nightfable/storygate/pkg/infra/prometheus"
	"github.com/nightfable/storygate/pkg/version"
)

const (
	exitViolations  = 1
	exitConfigError = 2
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("config"); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logger := infraLogger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	logger.WithField("version", version.GetInfo().Version).Debug("storygate starting")

	if cfg.Metrics.Enabled {
		prometheus.Initialize()
	}

	rules, err := ruleset.NewLoader(cfg.Guardrails.RulesFile, logger)
	if err != nil {
		logger.WithError(err).Error("failed to load guardrail rules")
		os.Exit(exitConfigError)
	}

	text, err := readInput()
	if err != nil {
		logger.WithError(err).Error("failed to read input")
		os.Exit(exitConfigError)
	}

	switch mode() {
	case "prompt":
		runPromptGate(rules, logger, text)
	default:
		runStoryGuard(rules, logger, text)
	}
}

// runPromptGate applies the pre-generation gate to stdin and reports all
// violations at once.
func runPromptGate(rules *ruleset.Loader, logger *logrus.Logger, text string) {
	kind := sanitizer.Narration
	if len(os.Args) > 2 && os.Args[2] == string(sanitizer.Visual) {
		kind = sanitizer.Visual
	}

	promptSanitizer := sanitizer.NewPromptSanitizer(rules, logger)
	if _, err := promptSanitizer.Enforce(text, kind); err != nil {
		var guardrailErr *guardrail.GuardrailError
		if !errors.As(err, &guardrailErr) {
			logger.WithError(err).Error("prompt gate failed to run")
			os.Exit(exitConfigError)
		}
		printViolations(guardrailErr.Violations)
		os.Exit(exitViolations)
	}
	fmt.Println("prompt accepted")
}

// runStoryGuard applies the post-generation advisory scan to stdin.
func runStoryGuard(rules *ruleset.Loader, logger *logrus.Logger, text string) {
	var profile *guardrail.UserProfile
	if len(os.Args) > 2 {
		profile = &guardrail.UserProfile{Name: os.Args[2]}
	}

	guard := contentguard.NewContentGuard(rules, logger)
	violations, err := guard.CheckStory(text, profile)
	if err != nil {
		logger.WithError(err).Error("story guard failed to run")
		os.Exit(exitConfigError)
	}
	if len(violations) > 0 {
		printViolations(violations)
		os.Exit(exitViolations)
	}
	fmt.Println("story clean")
}

func printViolations(violations []guardrail.Violation) {
	out, err := json.MarshalIndent(violations, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode violations: %v", err)
	}
	fmt.Println(string(out))
}

func readInput() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func mode() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return "story"
}
