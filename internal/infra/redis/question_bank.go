package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"wedding-quiz/internal/domain"
	"wedding-quiz/internal/infra/memory"
)

// QuestionBank caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored as JSON: SET quiz:set:{setID} [{text,choices,correctIndex}...]
type QuestionBank struct {
	client     *redis.Client
	loader     memory.QuestionLoader
	defaultSet string
	ttl        time.Duration
	sf         singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, defaultSet string, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client:     client,
		loader:     loader,
		defaultSet: defaultSet,
		ttl:        ttl,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, setID string) ([]domain.Question, error) {
	if setID == "" {
		setID = b.defaultSet
	}
	if qs, ok := b.cached(ctx, setID); ok {
		return qs, nil
	}

	result, err, _ := b.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := b.cached(ctx, setID); ok {
			return qs, nil
		}

		set, err := b.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(set.Questions)
		if err == nil {
			err = b.client.Set(ctx, b.key(setID), raw, b.ttlWithJitter()).Err()
		}
		if err != nil {
			log.Warn().Err(err).Str("set", setID).Msg("question set not cached")
		}
		return set.Questions, nil
	})
	if err != nil {
		return nil, err
	}
	// Every caller gets its own copy; rooms must not share question slices.
	qs := result.([]domain.Question)
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out, nil
}

func (b *QuestionBank) cached(ctx context.Context, setID string) ([]domain.Question, bool) {
	raw, err := b.client.Get(ctx, b.key(setID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("set", setID).Msg("question cache read failed")
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (b *QuestionBank) key(setID string) string {
	return "quiz:set:" + setID
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
