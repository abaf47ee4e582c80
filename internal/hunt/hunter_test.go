package hunt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/cache"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/oracle"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/retry"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/search"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/verify"
)

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

var profile = models.BusinessProfile{
	Name:         "Acme Hire",
	Industry:     "Equipment hire",
	Products:     []string{"Excavators"},
	TargetGroups: []string{"Councils"},
	Geography:    []string{"NSW"},
}

const tenderAnswer = `[{"headline":"Shire seeks machinery","summary":"s","importance":"i",
"matchedProducts":["Excavators"],"decisionMaker":"Shire Council","urgency":"HIGH",
"sourceUrl":"https://www.shirehire.com.au/a","sourceTitle":"Excavator program"}]`

var tenderChunks = []models.GroundingChunk{{Web: models.WebChunk{URI: "https://shirehire.com.au/b", Title: "Excavator hire opportunities"}}}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newHunter(t *testing.T, o oracle.Oracle, store cache.Store) (*Hunter, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	logger := zaptest.NewLogger(t)
	h, err := New(Deps{
		Builder:  &tasks.Builder{Clock: func() time.Time { return now }},
		Executor: search.NewExecutor(o, logger),
		Verifier: verify.New(logger),
		Policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxJitter:   time.Second,
			Sleep:       sleeper.Sleep,
			Rand:        func() float64 { return 0.5 },
		},
		Cache:  store,
		Clock:  func() time.Time { return now },
		Logger: logger,
	})
	require.NoError(t, err)
	return h, sleeper
}

func TestHuntSurvivesFailedTasks(t *testing.T) {
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		switch task.ID {
		case "tenders":
			return &oracle.Response{Text: tenderAnswer, Chunks: tenderChunks}, nil
		case "projects":
			return nil, errors.New("connection reset")
		default:
			return &oracle.Response{Text: "I could not find anything."}, nil
		}
	})
	h, sleeper := newHunter(t, o, nil)

	report, err := h.Run(context.Background(), Request{Profile: profile})
	require.NoError(t, err)
	require.Len(t, report.Signals, 1)
	assert.Equal(t, "https://shirehire.com.au/b", report.Signals[0].SourceURL)
	assert.Equal(t, "NSW", report.Signals[0].Region)
	assert.Equal(t, 3, report.Stats.Tasks)
	assert.Equal(t, 2, report.Stats.FailedTasks)
	assert.Equal(t, 1, report.Stats.Attempts)
	assert.True(t, report.Plan.WebMode)
	assert.Empty(t, sleeper.delays)
}

func TestHuntRetriesWholeHuntOnQuota(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		if calls.Load() <= 3 {
			return nil, errors.New("Error 429, Message: Resource has been exhausted (e.g. check quota).")
		}
		if task.ID == "tenders" {
			return &oracle.Response{Text: tenderAnswer, Chunks: tenderChunks}, nil
		}
		return &oracle.Response{Text: "[]"}, nil
	})
	h, sleeper := newHunter(t, o, nil)

	signals, err := h.Hunt(context.Background(), profile, nil, "")
	require.NoError(t, err)
	assert.Len(t, signals, 1)
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, []time.Duration{2500 * time.Millisecond}, sleeper.delays)
}

func TestHuntPropagatesLastErrorAfterRetries(t *testing.T) {
	quota := errors.New("429 quota exceeded")
	var calls atomic.Int32
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		return nil, quota
	})
	h, sleeper := newHunter(t, o, nil)

	signals, err := h.Hunt(context.Background(), profile, nil, "")
	require.Error(t, err)
	assert.Nil(t, signals)
	assert.ErrorIs(t, err, quota)
	assert.ErrorIs(t, err, search.ErrAllTasksFailed)
	assert.True(t, retry.IsQuotaError(err))
	assert.Equal(t, int32(9), calls.Load())
	assert.Equal(t, []time.Duration{2500 * time.Millisecond, 4500 * time.Millisecond}, sleeper.delays)
}

func TestHuntDoesNotRetryOtherErrors(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		return nil, oracle.ErrMissingAPIKey
	})
	h, sleeper := newHunter(t, o, nil)

	_, err := h.Hunt(context.Background(), profile, nil, "")
	assert.ErrorIs(t, err, oracle.ErrMissingAPIKey)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, sleeper.delays)
}

func TestHuntMixedFailuresRetryRegardlessOfTaskOrder(t *testing.T) {
	for _, resetTask := range []string{"tenders", "projects", "industry"} {
		t.Run(resetTask, func(t *testing.T) {
			var calls atomic.Int32
			o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
				calls.Add(1)
				if task.ID == resetTask {
					return nil, errors.New("connection reset")
				}
				return nil, errors.New("429 quota exceeded")
			})
			h, sleeper := newHunter(t, o, nil)

			_, err := h.Hunt(context.Background(), profile, nil, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, search.ErrAllTasksFailed)
			assert.True(t, retry.IsQuotaError(err), err.Error())
			assert.Equal(t, int32(9), calls.Load())
			assert.Len(t, sleeper.delays, 2)
		})
	}
}

func TestHuntRejectsEmptyProfile(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		return &oracle.Response{Text: "[]"}, nil
	})
	h, _ := newHunter(t, o, nil)

	_, err := h.Hunt(context.Background(), models.BusinessProfile{Name: "Nobody"}, nil, "")
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.Zero(t, calls.Load())
}

func TestHuntEmptyResultIsNotAnError(t *testing.T) {
	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		return &oracle.Response{Text: "[]"}, nil
	})
	h, _ := newHunter(t, o, nil)

	signals, err := h.Hunt(context.Background(), profile, nil, "")
	require.NoError(t, err)
	assert.NotNil(t, signals)
	assert.Empty(t, signals)
}

func TestHuntIgnoresUnapprovedTriggers(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		mu.Lock()
		ids = append(ids, task.ID)
		mu.Unlock()
		return &oracle.Response{Text: "[]"}, nil
	})
	h, _ := newHunter(t, o, nil)

	triggers := []models.SalesTrigger{
		{ID: "a", Event: "Tender", Status: models.TriggerApproved, LimitToSite: models.SiteList{"tenders.nsw.gov.au"}},
		{ID: "p", Event: "Flood", Status: models.TriggerPending, LimitToSite: models.SiteList{"pending.example"}},
	}
	report, err := h.Run(context.Background(), Request{Profile: profile, Triggers: triggers, Region: "Hunter Valley"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tenders.nsw.gov.au"}, report.Plan.Sites)
	assert.Equal(t, "Hunter Valley", report.Plan.Region)
	assert.ElementsMatch(t, []string{"site:tenders.nsw.gov.au"}, ids)
}

func TestHuntUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zaptest.NewLogger(t))

	var calls atomic.Int32
	o := oracle.Func(func(_ context.Context, task tasks.SearchTask) (*oracle.Response, error) {
		calls.Add(1)
		if task.ID == "tenders" {
			return &oracle.Response{Text: tenderAnswer, Chunks: tenderChunks}, nil
		}
		return &oracle.Response{Text: "[]"}, nil
	})
	h, _ := newHunter(t, o, store)
	ctx := context.Background()

	first, err := h.Run(ctx, Request{Profile: profile})
	require.NoError(t, err)
	require.Len(t, first.Signals, 1)
	assert.False(t, first.Stats.Cached)
	assert.Equal(t, int32(3), calls.Load())

	second, err := h.Run(ctx, Request{Profile: profile})
	require.NoError(t, err)
	assert.True(t, second.Stats.Cached)
	assert.Equal(t, first.Signals[0].ID, second.Signals[0].ID)
	assert.Equal(t, int32(3), calls.Load())

	fresh, err := h.Run(ctx, Request{Profile: profile, SkipCache: true})
	require.NoError(t, err)
	assert.False(t, fresh.Stats.Cached)
	assert.Equal(t, int32(6), calls.Load())
}

func TestHuntCacheOutageIsIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), zaptest.NewLogger(t))
	mr.Close()

	o := oracle.Func(func(context.Context, tasks.SearchTask) (*oracle.Response, error) {
		return &oracle.Response{Text: "[]"}, nil
	})
	h, _ := newHunter(t, o, store)

	signals, err := h.Hunt(context.Background(), profile, nil, "")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestNewRequiresExecutor(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
