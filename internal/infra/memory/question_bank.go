package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"wedding-quiz/internal/domain"
)

// QuestionLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionBank caches question sets with TTL to avoid repeated DB hits.
type QuestionBank struct {
	loader     QuestionLoader
	defaultSet string
	ttl        time.Duration
	clock      func() time.Time
	sf         singleflight.Group
	rnd        *rand.Rand

	mu    sync.Mutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

// NewQuestionBank serves defaultSet when a room is created without naming a set.
func NewQuestionBank(loader QuestionLoader, defaultSet string, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader:     loader,
		defaultSet: defaultSet,
		ttl:        ttl,
		clock:      time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cachedSet),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, setID string) ([]domain.Question, error) {
	if setID == "" {
		setID = b.defaultSet
	}
	if qs, ok := b.cached(setID); ok {
		return qs, nil
	}

	result, err, _ := b.sf.Do(setID, func() (interface{}, error) {
		if qs, ok := b.cached(setID); ok {
			return qs, nil
		}
		set, err := b.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[setID] = cachedSet{
			questions: set.Questions,
			expiresAt: b.clock().Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return set.Questions, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

func (b *QuestionBank) cached(setID string) ([]domain.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.cache[setID]
	if !ok || !entry.expiresAt.After(b.clock()) {
		return nil, false
	}
	return copyQuestions(entry.questions), true
}

// ttlWithJitter adds up to 10% to spread expirations. Called with mu held.
func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// copyQuestions hands each room its own slices so a room never aliases the cache.
func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out
}

// StaticQuestionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets ...domain.QuestionSet) *StaticQuestionLoader {
	l := &StaticQuestionLoader{sets: make(map[string]domain.QuestionSet, len(sets))}
	for _, set := range sets {
		l.sets[set.ID] = set
	}
	return l
}

func (l *StaticQuestionLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}

// FallbackLoader tries Primary first and uses Secondary when the set is unknown there.
type FallbackLoader struct {
	Primary   QuestionLoader
	Secondary QuestionLoader
}

func (l FallbackLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	set, err := l.Primary.LoadQuestionSet(ctx, setID)
	if err == nil {
		return set, nil
	}
	if l.Secondary == nil || !errors.Is(err, domain.ErrQuestionSetNotFound) {
		return domain.QuestionSet{}, err
	}
	return l.Secondary.LoadQuestionSet(ctx, setID)
}
