package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Export writes every relation to its JSONL file in dir, one row per line.
// Files are written concurrently, each with the atomic temp-file pattern. It
// returns the number of rows written per file.
func (b *Backend) Export(ctx context.Context, dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(jsonlTables))
	)
	err := b.read(func(q queryer) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range jsonlTables {
			g.Go(func() error {
				records, err := exportTable(gctx, q, t)
				if err != nil {
					return err
				}
				if err := writeJSONL(filepath.Join(dir, t.file), records); err != nil {
					return fmt.Errorf("writing %s: %w", t.file, err)
				}
				mu.Lock()
				counts[t.file] = len(records)
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	b.log.Info().Str("dir", dir).Interface("rows", counts).Msg("workspace exported")
	return counts, nil
}

func exportTable(ctx context.Context, q queryer, t jsonlTable) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+strings.Join(t.columns, ", ")+" FROM "+t.table+
			" ORDER BY "+t.columns[0]+", "+t.columns[1],
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s for JSONL: %w", t.table, err)
	}
	defer rows.Close()

	records := []json.RawMessage{}
	for rows.Next() {
		values := make([]any, len(t.columns))
		valuePtrs := make([]any, len(t.columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", t.table, err)
		}

		rec := make(map[string]any, len(t.columns))
		for i, col := range t.columns {
			v := values[i]
			if raw, ok := v.([]byte); ok {
				v = string(raw)
			}
			if s, ok := v.(string); ok && t.jsonColumns[col] && json.Valid([]byte(s)) {
				v = json.RawMessage(s)
			}
			rec[col] = v
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s row: %w", t.table, err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s for JSONL: %w", t.table, err)
	}
	return records, nil
}
