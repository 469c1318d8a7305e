package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileProducer serves analyses from a JSON file: an array of Analysis
// objects. The newest snapshot per symbol wins. The file can be reloaded
// in place; a failed reload keeps the previous dataset.
type FileProducer struct {
	mu       sync.RWMutex
	latest   map[string]Analysis
	path     string
	logger   zerolog.Logger
	metrics  *metrics.Collector
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFileProducer loads path and returns a producer over it.
func NewFileProducer(path string, logger zerolog.Logger, m *metrics.Collector) (*FileProducer, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	p := &FileProducer{
		path:    absPath,
		logger:  logger.With().Str("component", "payload").Logger(),
		metrics: m,
		stopCh:  make(chan struct{}),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Produce returns the latest analysis for the subject.
func (p *FileProducer) Produce(ctx context.Context, req ports.PayloadRequest) (map[string]any, error) {
	p.mu.RLock()
	a, ok := p.latest[strings.ToUpper(req.Subject)]
	p.mu.RUnlock()

	if !ok {
		return nil, gate.NotFound(fmt.Sprintf("No analysis found for symbol %s", req.Subject))
	}
	return Format(a, req.Fields), nil
}

// Symbols returns how many symbols are loaded.
func (p *FileProducer) Symbols() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.latest)
}

// Reload re-reads the file. The old dataset is kept on failure.
func (p *FileProducer) Reload() error {
	latest, err := loadFile(p.path)
	if err != nil {
		p.metrics.PayloadReload("error")
		return fmt.Errorf("load payload file: %w", err)
	}

	p.mu.Lock()
	p.latest = latest
	p.mu.Unlock()

	p.metrics.PayloadReload("ok")
	p.logger.Info().Str("path", p.path).Int("symbols", len(latest)).Msg("payload dataset loaded")
	return nil
}

func loadFile(path string) (map[string]Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []Analysis
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	latest := make(map[string]Analysis, len(rows))
	for _, a := range rows {
		sym := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if sym == "" {
			continue
		}
		a.Symbol = sym
		if cur, ok := latest[sym]; !ok || a.Timestamp.After(cur.Timestamp) {
			latest[sym] = a
		}
	}
	return latest, nil
}

// Watch reloads the dataset whenever the file is written or replaced.
func (p *FileProducer) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory so atomic renames are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	p.watcher = watcher

	go p.watchLoop()

	p.logger.Info().Str("path", p.path).Msg("watching payload file for changes")
	return nil
}

func (p *FileProducer) watchLoop() {
	filename := filepath.Base(p.path)

	// Editors often emit several events per save; coalesce them.
	const settle = 100 * time.Millisecond
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				p.logger.Debug().Str("event", event.Op.String()).Msg("payload file changed")
				pending = time.After(settle)
			}

		case <-pending:
			pending = nil
			if err := p.Reload(); err != nil {
				p.logger.Error().Err(err).Msg("payload reload failed, keeping previous dataset")
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error().Err(err).Msg("file watcher error")

		case <-p.stopCh:
			return
		}
	}
}

// Close stops watching.
func (p *FileProducer) Close() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.watcher != nil {
			p.watcher.Close()
		}
	})
	return nil
}

// Ensure interface compliance.
var _ ports.PayloadProducer = (*FileProducer)(nil)
