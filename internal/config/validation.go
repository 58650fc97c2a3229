package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is read directly by Genkit; only its presence is checked here.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Threshold is a cosine similarity bound. Values above 1 admit nothing;
	// 0 and below admit everything and are indistinguishable from an unset
	// value, which downstream defaults treat as "use 0.75".
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("%w: must be in (0.0, 1.0], got %.2f", ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if c.TopN < 1 || c.TopN > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopN, c.TopN)
	}

	// The migrations declare kb_entries.fingerprint as vector(768), so any
	// other width would only fail at the first insert. Changing the width
	// requires a migration altering the column and re-embedding all entries.
	if c.Dimension != knowledge.DefaultDimension {
		return fmt.Errorf("%w: must be %d to match the stored fingerprint width, got %d",
			ErrInvalidDimension, knowledge.DefaultDimension, c.Dimension)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == DefaultDevPassword {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidServerPort, c.ServerPort)
	}

	return nil
}
