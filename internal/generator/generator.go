// Package generator turns a rendered prompt into a single candidate SQL
// statement. Models wrap their answers inconsistently, so extraction walks a
// ladder of progressively looser patterns before giving up.
package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/llm"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
)

var (
	fencedBlockRe = regexp.MustCompile("(?is)```(?:sql)?\\s*(.+?)```")
	labeledRe     = regexp.MustCompile(`(?im)^\s*SQL_QUERY:\s*(.+)$`)
	bareSelectRe  = regexp.MustCompile(`(?is)\bSELECT\b.*`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Config bounds a generation call.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// Generator calls the model and extracts the candidate statement.
type Generator struct {
	service llm.Service
	config  Config
	logger  *logging.Logger
}

// New creates a generator over the given completion service.
func New(service llm.Service, config Config, logger *logging.Logger) *Generator {
	return &Generator{
		service: service,
		config:  config,
		logger:  logger,
	}
}

// Generate sends the prompt to the model and returns the extracted candidate
// SQL. The candidate has not been validated; callers must run it through the
// validator before treating it as executable.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := g.service.Complete(ctx, prompt, llm.Options{
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeGeneration, "model completion failed")
	}

	candidate, err := ExtractSQL(completion)
	if err != nil {
		g.logger.WithFields(map[string]interface{}{
			"stage":             "generate",
			"completion_length": len(completion),
		}).Warn("could not extract SQL from model completion")

		return "", err
	}

	g.logger.WithField("stage", "generate").Debug("extracted candidate SQL")

	return candidate, nil
}

// Healthy probes the underlying model service when it supports probing.
func (g *Generator) Healthy(ctx context.Context) error {
	if probe, ok := g.service.(interface{ Healthy(context.Context) error }); ok {
		return probe.Healthy(ctx)
	}

	return nil
}

// ExtractSQL pulls a single SQL statement out of a raw model completion.
// It tries, in order: a fenced code block, an explicit SQL_QUERY: label, and
// finally a bare statement starting at the first SELECT keyword.
func ExtractSQL(completion string) (string, error) {
	trimmed := strings.TrimSpace(completion)
	if trimmed == "" {
		return "", errors.New(errors.ErrTypeGenerationParse, "model returned an empty completion")
	}

	if strings.EqualFold(trimmed, "NO_ANSWER") {
		return "", errors.New(errors.ErrTypeGenerationParse,
			"model reported the question cannot be answered from the known tables")
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		if sql := cleanup(m[1]); sql != "" {
			return sql, nil
		}
	}

	if m := labeledRe.FindStringSubmatch(trimmed); m != nil {
		if sql := cleanup(m[1]); sql != "" {
			return sql, nil
		}
	}

	if m := bareSelectRe.FindString(trimmed); m != "" {
		// Stop at the first semicolon so trailing prose after the
		// statement does not leak into the candidate.
		if idx := strings.Index(m, ";"); idx >= 0 {
			m = m[:idx]
		}

		if sql := cleanup(m); sql != "" {
			return sql, nil
		}
	}

	return "", errors.New(errors.ErrTypeGenerationParse,
		"no SQL statement found in model completion").
		WithSuggestion("Rephrase the question to reference lab tables more directly")
}

// cleanup collapses the statement onto one line and drops a trailing
// semicolon.
func cleanup(sql string) string {
	sql = whitespaceRe.ReplaceAllString(strings.TrimSpace(sql), " ")
	sql = strings.TrimSuffix(sql, ";")

	return strings.TrimSpace(sql)
}
