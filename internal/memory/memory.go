// Package memory records run outcomes into the memory subsystem.
//
// Retrieval and similarity ranking belong to an external collaborator;
// the orchestration core only ever records, and recording is strictly
// best-effort for the run controller.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const runCollection = "run-learnings"

// Recorder saves run learnings to memory.
type Recorder interface {
	Record(ctx context.Context, content string, tags []string) error
}

// ChromemRecorder persists learnings into an embedded chromem-go
// database, where the retrieval subsystem picks them up.
type ChromemRecorder struct {
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromemRecorder opens (or creates) the persistent memory database
// at path. The embedding function may be nil, in which case chromem's
// default (OpenAI, OPENAI_API_KEY from the environment) is used.
func NewChromemRecorder(path string, embed chromem.EmbeddingFunc, logger *zap.Logger) (*ChromemRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("memory path is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for memory recorder")
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory db %s: %w", path, err)
	}
	collection, err := db.GetOrCreateCollection(runCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", runCollection, err)
	}

	return &ChromemRecorder{
		collection: collection,
		logger:     logger.Named("memory"),
	}, nil
}

// Record implements Recorder.
func (r *ChromemRecorder) Record(ctx context.Context, content string, tags []string) error {
	if content == "" {
		return fmt.Errorf("memory content cannot be empty")
	}
	doc := chromem.Document{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: map[string]string{
			"tags":        strings.Join(tags, ","),
			"recorded_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := r.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to record memory: %w", err)
	}
	r.logger.Debug("recorded run learning",
		zap.String("doc_id", doc.ID),
		zap.Strings("tags", tags))
	return nil
}
