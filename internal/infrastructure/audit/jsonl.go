// Package audit appends safety gate decisions to a JSONL file. Writes
// never fail the request path: a broken audit disk degrades to warning
// logs, not blocked answers.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
)

type JSONLWriter struct {
	mu   sync.Mutex
	path string
}

func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JSONLWriter{path: path}, nil
}

func (w *JSONLWriter) Append(_ context.Context, entry domain.AuditEntry) {
	line, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("audit_marshal_failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("audit_open_failed", "path", w.path, "error", err)
		return
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		slog.Warn("audit_write_failed", "path", w.path, "error", err)
	}
}
