// Package storage 提供存储层抽象
//
// mock.go 提供用于测试的内存实现
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"pairshot/internal/shared/model"
)

// MemStore 内存版 PersistentStore，仅用于测试
type MemStore struct {
	mu           sync.RWMutex
	Accounts     map[string]*model.Account
	Codes        map[string]*model.IndustryCode
	Generations  map[string]*model.GenerationRecord
	Supports     map[string]*model.SupportRequest
	AdminActions map[string]*model.AdminAction
}

// NewMemStore 创建内存存储实例
func NewMemStore() *MemStore {
	return &MemStore{
		Accounts:     make(map[string]*model.Account),
		Codes:        make(map[string]*model.IndustryCode),
		Generations:  make(map[string]*model.GenerationRecord),
		Supports:     make(map[string]*model.SupportRequest),
		AdminActions: make(map[string]*model.AdminAction),
	}
}

// Close 关闭存储
func (s *MemStore) Close() error { return nil }

// ============================================================================
// AccountStore
// ============================================================================

func (s *MemStore) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Accounts[account.ID]; ok {
		return ErrDuplicate
	}
	for _, a := range s.Accounts {
		if a.Email == account.Email {
			return ErrDuplicate
		}
	}
	cp := *account
	s.Accounts[account.ID] = &cp
	return nil
}

func (s *MemStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.Accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.Accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Accounts[account.ID]; !ok {
		return ErrNotFound
	}
	cp := *account
	cp.UpdatedAt = time.Now()
	s.Accounts[account.ID] = &cp
	return nil
}

func (s *MemStore) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) ListAccounts(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]*model.Account, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		cp := *a
		accounts = append(accounts, &cp)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return paginate(accounts, limit, offset), nil
}

func (s *MemStore) DecrementCredits(ctx context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	if a.Credits < amount {
		return ErrInsufficientCredits
	}
	a.Credits -= amount
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) AddCredits(ctx context.Context, id string, purchase model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Credits += purchase.Credits
	a.Purchases = append(a.Purchases, purchase)
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) EnsureCredits(ctx context.Context, id string, def int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	return a.Credits, nil
}

// ============================================================================
// IndustryCodeStore
// ============================================================================

func (s *MemStore) CreateIndustryCode(ctx context.Context, code *model.IndustryCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Codes[code.Code]; ok {
		return ErrDuplicate
	}
	cp := *code
	s.Codes[code.Code] = &cp
	return nil
}

func (s *MemStore) GetIndustryCode(ctx context.Context, code string) (*model.IndustryCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.Codes[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) ListIndustryCodes(ctx context.Context, limit, offset int) ([]*model.IndustryCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]*model.IndustryCode, 0, len(s.Codes))
	for _, c := range s.Codes {
		cp := *c
		codes = append(codes, &cp)
	}
	sort.Slice(codes, func(i, j int) bool {
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})
	return paginate(codes, limit, offset), nil
}

func (s *MemStore) ClaimIndustryCode(ctx context.Context, code, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Codes[code]
	if !ok {
		return ErrNotFound
	}
	if c.Used {
		return ErrConflict
	}
	c.Used = true
	c.UsedBy = accountID
	c.UsedAt = &at
	return nil
}

// ============================================================================
// GenerationStore
// ============================================================================

func (s *MemStore) CreateGeneration(ctx context.Context, rec *model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Generations[rec.ID]; ok {
		return ErrDuplicate
	}
	cp := *rec
	s.Generations[rec.ID] = &cp
	return nil
}

func (s *MemStore) ListGenerationsByAccount(ctx context.Context, accountID string, limit int) ([]*model.GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.generationsByAccountLocked(accountID)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemStore) PruneGenerations(ctx context.Context, accountID string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.generationsByAccountLocked(accountID)
	if len(recs) <= keep {
		return 0, nil
	}
	deleted := 0
	for _, rec := range recs[keep:] {
		delete(s.Generations, rec.ID)
		deleted++
	}
	return deleted, nil
}

func (s *MemStore) ListGenerations(ctx context.Context, limit, offset int) ([]*model.GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*model.GenerationRecord, 0, len(s.Generations))
	for _, r := range s.Generations {
		cp := *r
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return paginate(recs, limit, offset), nil
}

// generationsByAccountLocked 按创建时间倒序返回副本，调用方需持有锁
func (s *MemStore) generationsByAccountLocked(accountID string) []*model.GenerationRecord {
	var recs []*model.GenerationRecord
	for _, r := range s.Generations {
		if r.AccountID == accountID {
			cp := *r
			recs = append(recs, &cp)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs
}

// ============================================================================
// SupportStore
// ============================================================================

func (s *MemStore) CreateSupportRequest(ctx context.Context, req *model.SupportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Supports[req.ID]; ok {
		return ErrDuplicate
	}
	cp := *req
	s.Supports[req.ID] = &cp
	return nil
}

func (s *MemStore) GetSupportRequest(ctx context.Context, id string) (*model.SupportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.Supports[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListSupportRequestsByAccount(ctx context.Context, accountID string) ([]*model.SupportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reqs []*model.SupportRequest
	for _, r := range s.Supports {
		if r.AccountID == accountID {
			cp := *r
			reqs = append(reqs, &cp)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return reqs, nil
}

func (s *MemStore) ListSupportRequests(ctx context.Context, status string, limit, offset int) ([]*model.SupportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reqs []*model.SupportRequest
	for _, r := range s.Supports {
		if status == "" || string(r.Status) == status {
			cp := *r
			reqs = append(reqs, &cp)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return paginate(reqs, limit, offset), nil
}

func (s *MemStore) UpdateSupportRequest(ctx context.Context, id string, status model.SupportStatus, response string, resolvedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Supports[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if response != "" {
		r.Response = response
	}
	if resolvedAt != nil {
		r.ResolvedAt = resolvedAt
	}
	return nil
}

// ============================================================================
// AdminActionStore
// ============================================================================

func (s *MemStore) CreateAdminAction(ctx context.Context, action *model.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.AdminActions[action.ID]; ok {
		return ErrDuplicate
	}
	cp := *action
	s.AdminActions[action.ID] = &cp
	return nil
}

func (s *MemStore) GetAdminAction(ctx context.Context, id string) (*model.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.AdminActions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) ListAdminActionsByAccount(ctx context.Context, accountID string) ([]*model.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var actions []*model.AdminAction
	for _, a := range s.AdminActions {
		if a.AccountID == accountID {
			cp := *a
			actions = append(actions, &cp)
		}
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	return actions, nil
}

func (s *MemStore) ListPendingAdminActions(ctx context.Context, limit int) ([]*model.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var actions []*model.AdminAction
	for _, a := range s.AdminActions {
		if a.Status == model.AdminActionStatusPending {
			cp := *a
			actions = append(actions, &cp)
		}
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

func (s *MemStore) FinishAdminAction(ctx context.Context, id string, status model.AdminActionStatus, errDetail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.AdminActions[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	a.Status = status
	a.Error = errDetail
	a.UpdatedAt = now
	a.FinishedAt = &now
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// 确保 MemStore 实现了 PersistentStore 接口
var _ PersistentStore = (*MemStore)(nil)
