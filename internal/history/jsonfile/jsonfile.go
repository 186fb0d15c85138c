// Package jsonfile appends fetch records to an NDJSON file. It suits
// single-process deployments that want a greppable log without a database.
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/shelfmark/pricescout/internal/history"
)

var _ history.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New opens (creating if needed) an NDJSON fetch log at path.
func New(path string) (history.Backend, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ndjson fetch log: %w", err)
	}
	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Record(_ context.Context, rec *history.FetchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fetch record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append fetch record: %w", err)
	}
	return nil
}

func (b *jsonBackend) Query(_ context.Context, filter history.Filter) ([]*history.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind fetch log: %w", err)
	}
	defer func() {
		// Restore the pointer to the end for appending.
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	var matched []*history.FetchRecord
	scanner := bufio.NewScanner(b.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r history.FetchRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode fetch record: %w", err)
		}

		if filter.Host != "" && r.Host != filter.Host {
			continue
		}
		if filter.BotGate != nil && r.BotGate != *filter.BotGate {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fetch log: %w", err)
	}

	// Newest first; the file is append-ordered.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
