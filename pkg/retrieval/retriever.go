package retrieval

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-scribe-be/pkg/embedding"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Evidence is one external knowledge snippet folded into a stage prompt.
type Evidence struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// Retriever assembles external knowledge context for the differential stage.
// Any failure degrades to "no external context"; callers never see an error.
type Retriever struct {
	db       *gorm.DB
	embedder embedding.EmbeddingProvider
	timeout  time.Duration
	limit    int
	logger   *log.Logger
}

func NewRetriever(db *gorm.DB, embedder embedding.EmbeddingProvider, timeout time.Duration, limit int, logger *log.Logger) *Retriever {
	if limit <= 0 {
		limit = 5
	}
	return &Retriever{
		db:       db,
		embedder: embedder,
		timeout:  timeout,
		limit:    limit,
		logger:   logger,
	}
}

// Search embeds the extracted terms and returns the nearest knowledge
// snippets by cosine distance.
func (r *Retriever) Search(ctx context.Context, terms []string) []Evidence {
	if len(terms) == 0 || r.db == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.embedder.Generate(strings.Join(terms, ", "), "RETRIEVAL_QUERY")
	if err != nil {
		r.logger.Printf("[WARN] Knowledge embedding failed, continuing without external context: %v", err)
		return nil
	}

	var rows []Evidence
	err = r.db.WithContext(cctx).
		Raw(
			"SELECT source, title, url, excerpt FROM knowledge_snippets ORDER BY embedding <=> ? LIMIT ?",
			pgvector.NewVector(res.Embedding.Values),
			r.limit,
		).
		Scan(&rows).Error
	if err != nil {
		r.logger.Printf("[WARN] Knowledge lookup failed, continuing without external context: %v", err)
		return nil
	}

	return rows
}
