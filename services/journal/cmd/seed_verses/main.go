// Command seed_verses embeds a YAML list of Bible verses and upserts them
// into the verse index used by /api/verses/search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"selah/internal/util"
	"selah/pkg/ai"
	"selah/pkg/domain"
	"selah/pkg/store"
	"selah/services/journal/internal/config"
)

type verseRecord struct {
	Book      string `yaml:"book"`
	Chapter   int    `yaml:"chapter"`
	Verse     int    `yaml:"verse"`
	Text      string `yaml:"text"`
	Testament string `yaml:"testament"`
}

type verseSink interface {
	UpsertVerse(v domain.BibleVerse, embedding []float32) error
}

func main() {
	configPath := flag.String("config", config.Path(), "journal config file")
	versesPath := flag.String("file", "data/verses.yaml", "YAML list of verses")
	concurrency := flag.Int("concurrency", 4, "parallel embedding requests")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)
	if cfg.EmbeddingBaseURL == "" || cfg.EmbeddingModel == "" {
		logger.Error("embeddingBaseURL and embeddingModel are required")
		os.Exit(1)
	}

	records, err := loadVerses(*versesPath)
	if err != nil {
		logger.Error("load verses", "file", *versesPath, "err", err)
		os.Exit(1)
	}
	db, err := store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	embedder := ai.NewOllamaEmbedder(ai.NewOllamaClient(cfg.EmbeddingBaseURL), cfg.EmbeddingModel, cfg.EmbeddingDim)
	n, err := seed(ctx, records, embedder, db, *concurrency)
	if err != nil {
		logger.Error("seed verses", "seeded", n, "err", err)
		os.Exit(1)
	}
	logger.Info("verses seeded", "count", n, "file", *versesPath)
}

func loadVerses(path string) ([]verseRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []verseRecord
	if err := yaml.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, r := range records {
		if strings.TrimSpace(r.Book) == "" || r.Chapter <= 0 || r.Verse <= 0 || strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("verse %d: book, chapter, verse and text are required", i+1)
		}
		switch domain.Testament(r.Testament) {
		case "", domain.OldTestament, domain.NewTestament:
		default:
			return nil, fmt.Errorf("verse %d: unknown testament %q", i+1, r.Testament)
		}
	}
	return records, nil
}

// seed embeds and upserts every record, stopping at the first failure.
// It returns how many verses were written.
func seed(ctx context.Context, records []verseRecord, embedder ai.Embedder, sink verseSink, concurrency int) (int, error) {
	if embedder == nil || sink == nil {
		return 0, errors.New("embedder and store required")
	}
	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, r := range records {
		g.Go(func() error {
			vec, err := embedder.EmbedText(ctx, r.Text)
			if err != nil {
				return fmt.Errorf("embed %s %d:%d: %w", r.Book, r.Chapter, r.Verse, err)
			}
			v := domain.BibleVerse{
				Book:      strings.TrimSpace(r.Book),
				Chapter:   r.Chapter,
				Verse:     r.Verse,
				Text:      strings.TrimSpace(r.Text),
				Testament: domain.Testament(r.Testament),
			}
			if err := sink.UpsertVerse(v, vec); err != nil {
				return fmt.Errorf("upsert %s %d:%d: %w", r.Book, r.Chapter, r.Verse, err)
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(written.Load()), err
}
