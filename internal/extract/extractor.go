package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entity is a typed value pulled out of document text by the extraction
// model. Confidence is clamped to [0, 1].
type Entity struct {
	Type       string            `json:"type"`
	Value      string            `json:"value"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Generator is the text-generation capability the extractor consumes.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	Enabled      bool
	WindowSize   int
	Overlap      int
	Concurrency  int
	MaxPerWindow int
	// RequestTimeout bounds each window's generation call when positive.
	RequestTimeout time.Duration
}

// Extractor derives structured entities from full document text with a
// MapReduce pass over overlapping windows: one concurrent generation call
// per window, merged by dedup key afterwards. Extract never fails; a bad
// window contributes nothing.
type Extractor struct {
	gen Generator
	cfg Config
}

func New(gen Generator, cfg Config) *Extractor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 8000
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowSize {
		cfg.Overlap = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 20
	}
	return &Extractor{gen: gen, cfg: cfg}
}

const systemPrompt = `You are an information extraction engine. From the supplied text, identify up to %d notable entities (people, organizations, locations, dates, amounts, identifiers, technical terms). Respond with only a JSON array of objects with keys "type", "value" and "confidence" (0.0-1.0). No prose.`

func (e *Extractor) Extract(ctx context.Context, text string) []Entity {
	if !e.cfg.Enabled || strings.TrimSpace(text) == "" {
		return nil
	}

	windows := splitIntoWindows(text, e.cfg.WindowSize, e.cfg.Overlap)

	// Map: one extraction call per window, bounded fan-out. A window
	// that fails or returns garbage contributes zero entities.
	results := make([][]Entity, len(windows))
	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, w Window) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entities, err := e.extractWindow(ctx, w, len(windows), len(text))
			if err != nil {
				slog.WarnContext(ctx, "entity extraction window failed", "window", w.Index, "error", err)
				return
			}
			results[i] = entities
		}(i, w)
	}
	wg.Wait()

	return reduce(results)
}

func (e *Extractor) extractWindow(ctx context.Context, w Window, total, textLen int) ([]Entity, error) {
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	user := fmt.Sprintf("Window %d of %d (characters %d-%d of %d):\n\n%s",
		w.Index+1, total, w.Start, w.Start+len(w.Text), textLen, w.Text)

	raw, err := e.gen.Generate(ctx, fmt.Sprintf(systemPrompt, e.cfg.MaxPerWindow), user)
	if err != nil {
		return nil, err
	}

	var parsed []Entity
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("unparsable extraction response: %w", err)
	}

	entities := make([]Entity, 0, len(parsed))
	for _, ent := range parsed {
		if len(entities) == e.cfg.MaxPerWindow {
			break
		}
		if strings.TrimSpace(ent.Value) == "" || strings.TrimSpace(ent.Type) == "" {
			continue
		}
		if ent.Confidence < 0 {
			ent.Confidence = 0
		}
		if ent.Confidence > 1 {
			ent.Confidence = 1
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

type dedupKey struct {
	typ   string
	value string
}

// reduce merges all windows' entities, keeping the highest-confidence
// instance per (lower-cased type, lower-cased trimmed value) key. Output
// is sorted by confidence descending; value breaks ties so that the
// result is deterministic.
func reduce(results [][]Entity) []Entity {
	merged := map[dedupKey]Entity{}
	for _, entities := range results {
		for _, ent := range entities {
			key := dedupKey{
				typ:   strings.ToLower(ent.Type),
				value: strings.ToLower(strings.TrimSpace(ent.Value)),
			}
			if best, ok := merged[key]; !ok || ent.Confidence > best.Confidence {
				merged[key] = ent
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}

	out := make([]Entity, 0, len(merged))
	for _, ent := range merged {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// stripCodeFence removes a markdown code fence wrapper, which models emit
// even when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
