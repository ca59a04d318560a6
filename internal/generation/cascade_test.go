package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairshot/internal/provider"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

// ============================================================================
// 测试替身
// ============================================================================

// fakeAdapter 可编排成败序列的适配器
type fakeAdapter struct {
	name    string
	free    bool
	mu      sync.Mutex
	calls   int
	outcome func(call int) error // 第 call 次调用（从 1 开始）的结果，nil 为成功
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Free() bool   { return f.free }

func (f *fakeAdapter) Generate(ctx context.Context, prompt string, seed int64) (*provider.Image, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.outcome != nil {
		if err := f.outcome(call); err != nil {
			return nil, err
		}
	}
	return &provider.Image{Provider: f.name, Data: []byte("img"), ContentType: "image/png"}, nil
}

func alwaysOK(call int) error   { return nil }
func alwaysFail(call int) error { return errors.New("unavailable") }

// fakeUploader 记录上传键
type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploader) UploadImage(ctx context.Context, accountID, generationID string, index int, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("generations/%s/%s/%d.png", accountID, generationID, index)
	f.keys = append(f.keys, key)
	return key, nil
}

func newTestController(t *testing.T, providers []provider.Adapter, store *storage.MemStore) (*Controller, *Ledger, *History) {
	t.Helper()
	ledger := NewLedger(store, 2, 1)
	history := NewHistory(store, 20, logging.Default("test"))
	c := NewController(providers, ledger, history, &fakeUploader{}, logging.Default("test"), 10)
	c.seedFn = func() int64 { return 1000 }
	return c, ledger, history
}

func seedAccount(t *testing.T, store *storage.MemStore, credits int) *model.Account {
	t.Helper()
	acc := &model.Account{ID: "acc-1", Email: "a@b.c", Credits: credits, Status: model.AccountStatusActive, Role: model.AccountRoleClient}
	require.NoError(t, store.CreateAccount(context.Background(), acc))
	return acc
}

// ============================================================================
// 排序策略
// ============================================================================

func TestOrderProvidersFreeFirst(t *testing.T) {
	free := &fakeAdapter{name: "free", free: true}
	paidA := &fakeAdapter{name: "paid-a"}
	paidB := &fakeAdapter{name: "paid-b"}
	c, _, _ := newTestController(t, []provider.Adapter{free, paidA, paidB}, storage.NewMemStore())

	// 无偏好：免费在前，其余按固定顺序
	names := func(ps []provider.Adapter) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Name()
		}
		return out
	}
	assert.Equal(t, []string{"free", "paid-a", "paid-b"}, names(c.orderProviders("")))

	// 偏好 paid-b：免费仍在最前，偏好其次
	assert.Equal(t, []string{"free", "paid-b", "paid-a"}, names(c.orderProviders("paid-b")))

	// 偏好即免费供应商：不重复
	assert.Equal(t, []string{"free", "paid-a", "paid-b"}, names(c.orderProviders("free")))
}

// ============================================================================
// 尝试循环
// ============================================================================

func TestRequestPairFullSuccess(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysOK}
	c, _, _ := newTestController(t, []provider.Adapter{free, &fakeAdapter{name: "paid"}}, store)

	session := NewCounter(20)
	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: session,
		Templates: []string{"nordic"}, Product: "oak chair",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Len(t, res.Record.Images, 2)
	assert.Equal(t, 2, session.Count())

	// 全额扣费 2 点
	got, err := store.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Credits)

	// 记录已持久化
	recs, err := store.ListGenerationsByAccount(context.Background(), acc.ID, 20)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRequestPairFreeFailureFallsBackSameIteration(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysFail}
	paid := &fakeAdapter{name: "paid", outcome: alwaysOK}
	c, _, _ := newTestController(t, []provider.Adapter{free, paid}, store)

	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20),
		Templates: []string{"studio"}, Product: "mug",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)

	// 免费失败后同轮立即回退，而不是空转整轮
	for _, img := range res.Record.Images {
		assert.Equal(t, "paid", img.Provider)
	}
	assert.LessOrEqual(t, res.Attempts, 2)
}

func TestRequestPairPartialPersisted(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	// 免费只成功一次，付费始终失败
	free := &fakeAdapter{name: "free", free: true, outcome: func(call int) error {
		if call == 1 {
			return nil
		}
		return errors.New("overloaded")
	}}
	paid := &fakeAdapter{name: "paid", outcome: alwaysFail}
	c, _, _ := newTestController(t, []provider.Adapter{free, paid}, store)

	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20),
		Templates: []string{"studio"}, Product: "lamp",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartial, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Len(t, res.Record.Images, 1)
	assert.Equal(t, 10, res.Attempts) // 预算耗尽

	// 部分成功仍持久化，扣 1 点
	recs, _ := store.ListGenerationsByAccount(context.Background(), acc.ID, 20)
	assert.Len(t, recs, 1)
	got, _ := store.GetAccount(context.Background(), acc.ID)
	assert.Equal(t, 19, got.Credits)
}

func TestRequestPairExhaustedNotPersisted(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysFail}
	paid := &fakeAdapter{name: "paid", outcome: alwaysFail}
	c, _, _ := newTestController(t, []provider.Adapter{free, paid}, store)

	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20),
		Templates: []string{"studio"}, Product: "vase",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExhausted, res.Outcome)
	assert.Nil(t, res.Record)

	recs, _ := store.ListGenerationsByAccount(context.Background(), acc.ID, 20)
	assert.Empty(t, recs)
	got, _ := store.GetAccount(context.Background(), acc.ID)
	assert.Equal(t, 20, got.Credits) // 无图不扣费
}

func TestRequestPairPreconditions(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	c, _, _ := newTestController(t, []provider.Adapter{&fakeAdapter{name: "free", free: true}}, store)

	_, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20), Templates: []string{"t"}, Product: "x",
	})
	assert.ErrorIs(t, err, ErrProductTooShort)

	_, err = c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20), Templates: nil, Product: "chair",
	})
	assert.ErrorIs(t, err, ErrNoTemplates)

	full := NewCounter(1)
	require.True(t, full.TryAcquire())
	_, err = c.RequestPair(context.Background(), Request{
		Account: acc, Session: full, Templates: []string{"t"}, Product: "chair",
	})
	assert.ErrorIs(t, err, ErrSessionCapReached)
}

func TestRequestPairStopsAtSessionCap(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysOK}
	c, _, _ := newTestController(t, []provider.Adapter{free}, store)

	// 只剩一个名额：拿到第一张后循环必须中止
	session := NewCounter(1)
	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: session,
		Templates: []string{"t"}, Product: "chair",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartial, res.Outcome)
	assert.Equal(t, 1, session.Count())
}

func TestRequestPairProgressEvents(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysOK}
	c, _, _ := newTestController(t, []provider.Adapter{free}, store)

	var events []ProgressEvent
	_, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20),
		Templates: []string{"t"}, Product: "chair",
		Progress: func(ev ProgressEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StageFinished, last.Stage)
	assert.Equal(t, model.OutcomeSuccess, last.Outcome)
	assert.Equal(t, 2, last.Collected)

	var collected int
	for _, ev := range events {
		if ev.Stage == StageCollected {
			collected++
		}
	}
	assert.Equal(t, 2, collected)
}

// ============================================================================
// 账本
// ============================================================================

func TestLedgerChargeRejectsUnderflow(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 1)
	ledger := NewLedger(store, 2, 1)

	err := ledger.Charge(context.Background(), acc.ID, model.OutcomeSuccess)
	assert.ErrorIs(t, err, storage.ErrInsufficientCredits)

	// 拒绝时余额不变
	got, _ := store.GetAccount(context.Background(), acc.ID)
	assert.Equal(t, 1, got.Credits)
}

func TestLedgerChargeSequence(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	ledger := NewLedger(store, 2, 1)

	require.NoError(t, ledger.Charge(context.Background(), acc.ID, model.OutcomeSuccess))
	require.NoError(t, ledger.Charge(context.Background(), acc.ID, model.OutcomeSuccess))

	got, _ := store.GetAccount(context.Background(), acc.ID)
	assert.Equal(t, 16, got.Credits)

	// 耗尽不扣费
	require.NoError(t, ledger.Charge(context.Background(), acc.ID, model.OutcomeExhausted))
	got, _ = store.GetAccount(context.Background(), acc.ID)
	assert.Equal(t, 16, got.Credits)
}

func TestLedgerTopUp(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 5)
	ledger := NewLedger(store, 2, 1)

	got, err := ledger.TopUp(context.Background(), acc.ID, "standard")
	require.NoError(t, err)
	assert.Equal(t, 65, got.Credits)
	require.Len(t, got.Purchases, 1)
	assert.Equal(t, 60, got.Purchases[0].Credits)

	_, err = ledger.TopUp(context.Background(), acc.ID, "bogus")
	assert.Error(t, err)
}

// ============================================================================
// 历史留存
// ============================================================================

func TestHistoryPrunesBeyondCap(t *testing.T) {
	store := storage.NewMemStore()
	history := NewHistory(store, 3, logging.Default("test"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &model.GenerationRecord{
			ID:        fmt.Sprintf("gen-%d", i),
			AccountID: "acc-1",
			Product:   "chair",
			Images:    []model.GeneratedImage{{Provider: "free", Locator: "k"}},
			Outcome:   model.OutcomePartial,
		}
		_, err := history.Append(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := history.List(ctx, "acc-1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	// 最新的在前，最老的两条已删除
	assert.Equal(t, "gen-4", recs[0].ID)
	assert.Equal(t, "gen-2", recs[2].ID)
}

func TestHistoryAssignsServerTimestamp(t *testing.T) {
	store := storage.NewMemStore()
	history := NewHistory(store, 20, logging.Default("test"))

	// 调用方设置的时间戳（包括零值）被服务端覆盖
	rec := &model.GenerationRecord{
		ID:        "gen-ts",
		AccountID: "acc-1",
		Product:   "vase",
		Images:    []model.GeneratedImage{{Provider: "free", Locator: "k"}},
		Outcome:   model.OutcomePartial,
		CreatedAt: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	before := time.Now()
	_, err := history.Append(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, rec.CreatedAt.Before(before))
	assert.False(t, rec.CreatedAt.After(time.Now()))
}

// failingGenStore 生成记录写入总是失败的存储
type failingGenStore struct {
	*storage.MemStore
}

func (s *failingGenStore) CreateGeneration(ctx context.Context, rec *model.GenerationRecord) error {
	return errors.New("write failed")
}

func TestRequestPairDeliversResultWhenPersistFails(t *testing.T) {
	store := storage.NewMemStore()
	acc := seedAccount(t, store, 20)
	ledger := NewLedger(store, 2, 1)
	history := NewHistory(&failingGenStore{MemStore: store}, 20, logging.Default("test"))
	free := &fakeAdapter{name: "free", free: true, outcome: alwaysOK}
	c := NewController([]provider.Adapter{free}, ledger, history, &fakeUploader{}, logging.Default("test"), 10)
	c.seedFn = func() int64 { return 1000 }

	res, err := c.RequestPair(context.Background(), Request{
		Account: acc, Session: NewCounter(20),
		Templates: []string{"nordic"}, Product: "oak chair",
	})

	// 持久化失败不影响请求结果，图像照常交付
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Len(t, res.Record.Images, 2)
	assert.True(t, res.SaveFailed)

	// 图像已交付，照常扣费
	got, err := store.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Credits)

	// 记录未落库
	recs, err := store.ListGenerationsByAccount(context.Background(), acc.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// ============================================================================
// 会话计数器
// ============================================================================

func TestCounterConcurrentAcquire(t *testing.T) {
	c := NewCounter(20)
	var wg sync.WaitGroup
	var acquired sync.Map
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.TryAcquire() {
				acquired.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	var n int
	acquired.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 20, n)
	assert.Equal(t, 20, c.Count())
	assert.False(t, c.TryAcquire())
}

func TestSessionsRegistry(t *testing.T) {
	s := NewSessions(20)
	a := s.Get("session-1")
	assert.Same(t, a, s.Get("session-1"))

	require.True(t, a.TryAcquire())
	s.Reset("session-1")
	// 重载后拿到全新计数器
	assert.Equal(t, 0, s.Get("session-1").Count())
}
