package history

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"taedam/internal/llm"
	"taedam/internal/logging"
	"taedam/internal/store"
)

const (
	defaultCacheSize   = 512
	defaultRecentLimit = 50
	summaryMaxChars    = 800
)

// ConversationSource is the slice of the store the cache reads.
type ConversationSource interface {
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error)
}

// PersonaSource reads personas and reads/writes weekly summaries.
type PersonaSource interface {
	LatestPersona(ctx context.Context, sessionID string) (*store.PersonaRecord, error)
	GetWeeklySummary(ctx context.Context, sessionID, weekStart string) (*store.WeeklySummary, error)
	UpsertWeeklySummary(ctx context.Context, w store.WeeklySummary) error
}

// Config configures the cache.
type Config struct {
	CacheSize   int // LRU entries, default 512
	RecentLimit int // messages per block, default 50
}

// Cache memoizes Blocks per (session, logical-date) key. Concurrent cold
// misses for one key coalesce into a single build; followers wait for the
// leader's result. Entries have no TTL: staleness is bounded only by LRU
// eviction and process restart.
type Cache struct {
	conversations ConversationSource
	personas      PersonaSource
	model         llm.Client
	entries       *lru.Cache[string, *Block]
	group         singleflight.Group
	logger        logging.Logger
	metrics       *Metrics
	recentLimit   int
}

// NewCache builds the cache over the given collaborators.
func NewCache(config Config, conversations ConversationSource, personas PersonaSource, model llm.Client, logger logging.Logger) (*Cache, error) {
	size := config.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, *Block](size)
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	limit := config.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return &Cache{
		conversations: conversations,
		personas:      personas,
		model:         model,
		entries:       entries,
		logger:        logging.OrNop(logger),
		metrics:       defaultMetrics(),
		recentLimit:   limit,
	}, nil
}

// GetOrBuild returns the block for (sessionID, date), building and caching it
// on a miss. Building may persist a freshly synthesized weekly summary as a
// side effect.
func (c *Cache) GetOrBuild(ctx context.Context, sessionID, date string) (*Block, error) {
	key := sessionID + "|" + date
	if block, ok := c.entries.Get(key); ok {
		c.metrics.hits.Inc()
		return block, nil
	}
	c.metrics.misses.Inc()

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A follower may arrive after the leader already populated the entry.
		if block, ok := c.entries.Get(key); ok {
			return block, nil
		}
		block, err := c.build(ctx, sessionID, date)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, block)
		return block, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.metrics.coalesced.Inc()
		c.logger.Debug("coalesced history build for %s", key)
	}
	return v.(*Block), nil
}

func (c *Cache) build(ctx context.Context, sessionID, date string) (*Block, error) {
	recent, err := c.conversations.RecentMessages(ctx, sessionID, c.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}

	weekStart, err := WeekStart(date)
	if err != nil {
		return nil, err
	}

	summary, err := c.personas.GetWeeklySummary(ctx, sessionID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("fetch weekly summary: %w", err)
	}
	if summary == nil {
		synthesized := c.summarizeWeek(ctx, recent)
		summary = &store.WeeklySummary{
			SessionID: sessionID,
			WeekStart: weekStart,
			WeekEnd:   WeekEnd(weekStart),
			Summary:   synthesized,
		}
		if err := c.personas.UpsertWeeklySummary(ctx, *summary); err != nil {
			return nil, fmt.Errorf("persist weekly summary: %w", err)
		}
	}

	persona, err := c.personas.LatestPersona(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch persona: %w", err)
	}

	return &Block{
		RecentChats:     recent,
		WeeklySummaries: []store.WeeklySummary{*summary},
		Persona:         persona,
	}, nil
}

const summarizeSystem = `너는 간결한 주간 요약 생성기야. 주어진 대화 기록을 보고 2~3문장으로 핵심을 요약해.
JSON만 반환해: {"summary": "..."}`

// summarizeWeek asks the model for a short weekly summary of the recent
// conversation. Model failures fall back to a truncated transcript; an empty
// conversation yields an empty summary.
func (c *Cache) summarizeWeek(ctx context.Context, recent []store.Message) string {
	texts := make([]string, 0, len(recent))
	for _, m := range recent {
		texts = append(texts, m.Text)
	}
	combined := strings.TrimSpace(strings.Join(texts, "\n"))
	if combined == "" {
		return ""
	}

	var out struct {
		Summary string `json:"summary"`
	}
	err := llm.CompleteStructured(ctx, c.model, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(summarizeSystem),
			llm.User("대화 기록:\n" + combined),
		},
		Temperature: 0,
	}, &out)
	if err != nil {
		c.logger.Warn("weekly summary synthesis failed, using transcript head: %v", err)
		return clip(combined, summaryMaxChars)
	}
	return clip(out.Summary, summaryMaxChars)
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
