// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, the database pool, Genkit,
// and the retrieval and resolution services together. Components receive
// their dependencies via constructors; nothing reads from globals.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faqhub/faqhub/internal/config"
	"github.com/faqhub/faqhub/internal/knowledge"
	"github.com/faqhub/faqhub/internal/resolution"
	"github.com/faqhub/faqhub/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge  *knowledge.Store
	Retrieval  *retrieval.Service
	Resolution *resolution.Service
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}

	return nil
}
