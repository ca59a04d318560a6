package generation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"pairshot/internal/provider"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

// targetImages 每次生成请求的目标图像数
const targetImages = 2

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrProductTooShort 产品名过短（< 2 字符）
	ErrProductTooShort = errors.New("generation: product name too short")

	// ErrNoTemplates 未选择模板
	ErrNoTemplates = errors.New("generation: no template selected")

	// ErrSessionCapReached 会话生成上限已满
	ErrSessionCapReached = errors.New("generation: session cap reached")
)

// ============================================================================
// 进度事件
// ============================================================================

// ProgressStage 进度阶段
type ProgressStage string

const (
	StageAttempting ProgressStage = "attempting" // 正在调用某个供应商
	StageCollected  ProgressStage = "collected"  // 收到一张图像
	StageFinished   ProgressStage = "finished"   // 终态
)

// ProgressEvent 生成进度事件，通过 WebSocket 推给前端
type ProgressEvent struct {
	Stage     ProgressStage           `json:"stage"`
	Provider  string                  `json:"provider,omitempty"`
	Attempt   int                     `json:"attempt"`
	Collected int                     `json:"collected"`
	Target    int                     `json:"target"`
	Outcome   model.GenerationOutcome `json:"outcome,omitempty"`
}

// ProgressFunc 进度回调，nil 表示不关心进度
type ProgressFunc func(ProgressEvent)

// ============================================================================
// ImageUploader - 图像落盘
// ============================================================================

// ImageUploader 把生成的图像字节写入对象存储，返回可寻址的键
type ImageUploader interface {
	UploadImage(ctx context.Context, accountID, generationID string, index int, data []byte, contentType string) (string, error)
}

// ============================================================================
// Controller - 生成级联控制器
// ============================================================================

// Request 一次生成请求的全部输入
type Request struct {
	Account        *model.Account
	Session        *Counter // 会话计数器（调用方按会话 ID 取得）
	Templates      []string
	SpecSelections map[string][]string
	Product        string
	Preferred      string // 用户显式选择的供应商名，可为空
	Progress       ProgressFunc
}

// Result 一次生成请求的结果
type Result struct {
	Outcome    model.GenerationOutcome
	Record     *model.GenerationRecord // exhausted 时为 nil（不持久化）
	Attempts   int
	Balance    int  // 扣费后余额，查询失败时为 -1
	SaveFailed bool // 历史写入失败；图像仍然交付，仅提示保存出错
}

// Controller 生成级联控制器
//
// 每次请求的状态机：Idle → BuildingPrompt → Attempting → 终态。
// 尝试循环严格串行：一个适配器调用完成（无论成败）才会发起下一个，
// 最坏延迟为所有超时之和，但共享计数在单次请求内无竞争。
type Controller struct {
	providers     []provider.Adapter // 固定回退顺序
	ledger        *Ledger
	history       *History
	uploader      ImageUploader
	logger        *logging.Logger
	attemptBudget int

	// 种子来源，测试中注入固定值
	seedFn func() int64
}

// NewController 创建控制器
// providers 的顺序即固定回退顺序，免费供应商应排在首位
func NewController(providers []provider.Adapter, ledger *Ledger, history *History, uploader ImageUploader, logger *logging.Logger, attemptBudget int) *Controller {
	return &Controller{
		providers:     providers,
		ledger:        ledger,
		history:       history,
		uploader:      uploader,
		logger:        logger,
		attemptBudget: attemptBudget,
		seedFn:        func() int64 { return time.Now().UnixNano() },
	}
}

// orderProviders 供应商排序策略
//
// 免费主供应商永远第一个尝试；用户显式选择的供应商（若不同）随后；
// 其余供应商按固定回退顺序追加，已出现的不重复。
func (c *Controller) orderProviders(preferred string) []provider.Adapter {
	ordered := make([]provider.Adapter, 0, len(c.providers))
	seen := make(map[string]bool, len(c.providers))

	for _, p := range c.providers {
		if p.Free() {
			ordered = append(ordered, p)
			seen[p.Name()] = true
			break
		}
	}
	if preferred != "" && !seen[preferred] {
		for _, p := range c.providers {
			if p.Name() == preferred {
				ordered = append(ordered, p)
				seen[p.Name()] = true
				break
			}
		}
	}
	for _, p := range c.providers {
		if !seen[p.Name()] {
			ordered = append(ordered, p)
			seen[p.Name()] = true
		}
	}
	return ordered
}

// RequestPair 执行一次生成请求，目标两张图像
//
// 前置条件按序检查，任一不满足即终止：
// 产品名长度 ≥ 2、至少选择一个模板、会话计数未达上限。
// （身份认证在 handler 层完成。）
func (c *Controller) RequestPair(ctx context.Context, req Request) (*Result, error) {
	if len(req.Product) < 2 {
		return nil, ErrProductTooShort
	}
	if len(req.Templates) == 0 {
		return nil, ErrNoTemplates
	}
	if req.Session.Remaining() == 0 {
		return nil, ErrSessionCapReached
	}

	prompt := BuildPrompt(req.Product, req.Templates, req.SpecSelections)
	genID := newGenerationID()
	log := c.logger.WithAccountID(req.Account.ID)

	ordered := c.orderProviders(req.Preferred)
	seed := c.seedFn()
	images := make([]model.GeneratedImage, 0, targetImages)
	attempts := 0
	capHit := false

	notify := func(ev ProgressEvent) {
		if req.Progress != nil {
			ev.Target = targetImages
			req.Progress(ev)
		}
	}

	// collect 调用一个供应商并在成功时占用一个会话名额
	collect := func(p provider.Adapter) {
		notify(ProgressEvent{Stage: StageAttempting, Provider: p.Name(), Attempt: attempts + 1, Collected: len(images)})

		start := time.Now()
		img, err := p.Generate(ctx, prompt, seed+int64(attempts))
		log.ProviderCallLog(p.Name(), attempts+1, time.Since(start), err)
		if err != nil {
			return
		}

		locator, err := c.uploader.UploadImage(ctx, req.Account.ID, genID, len(images), img.Data, img.ContentType)
		if err != nil {
			log.WithProvider(p.Name()).WithError(err).Warn("image upload failed, discarding result")
			return
		}

		// 成功调用的副作用：计数自增不随整体失败回滚
		if !req.Session.TryAcquire() {
			capHit = true
			return
		}
		images = append(images, model.GeneratedImage{Provider: p.Name(), Locator: locator})
		notify(ProgressEvent{Stage: StageCollected, Provider: p.Name(), Attempt: attempts + 1, Collected: len(images)})
	}

	for len(images) < targetImages && attempts < c.attemptBudget && !capHit && req.Session.Remaining() > 0 {
		p := ordered[attempts%len(ordered)]
		before := len(images)
		collect(p)

		// 免费主供应商失败时，同一轮内立刻改试一个回退供应商
		if len(images) == before && !capHit && p.Free() && len(ordered) > 1 {
			fallback := ordered[(attempts+1)%len(ordered)]
			if fallback.Name() != p.Name() && len(images) < targetImages {
				collect(fallback)
			}
		}
		attempts++
	}

	result := &Result{Attempts: attempts, Balance: -1}
	switch len(images) {
	case targetImages:
		result.Outcome = model.OutcomeSuccess
	case 0:
		result.Outcome = model.OutcomeExhausted
	default:
		result.Outcome = model.OutcomePartial
	}
	notify(ProgressEvent{Stage: StageFinished, Attempt: attempts, Collected: len(images), Outcome: result.Outcome})

	// 无图不持久化、不扣费；已发生的计数自增保留
	if result.Outcome == model.OutcomeExhausted {
		log.Warn("generation exhausted", "attempts", attempts)
		return result, nil
	}

	rec := &model.GenerationRecord{
		ID:             genID,
		AccountID:      req.Account.ID,
		Templates:      req.Templates,
		Product:        req.Product,
		SpecSelections: req.SpecSelections,
		Prompt:         prompt,
		Images:         images,
		Outcome:        result.Outcome,
	}
	// 图像已生成，持久化失败只记日志，结果照常交付
	if _, err := c.history.Append(ctx, rec); err != nil {
		log.WithError(err).Error("history write failed, delivering result anyway")
		result.SaveFailed = true
	}
	result.Record = rec

	if err := c.ledger.Charge(ctx, req.Account.ID, result.Outcome); err != nil {
		if errors.Is(err, storage.ErrInsufficientCredits) {
			// 图像已交付，余额不足只记日志，不把请求判为失败
			log.Warn("credit charge rejected", "outcome", string(result.Outcome))
		} else {
			log.WithError(err).Error("credit charge failed")
		}
	}
	if balance, err := c.ledger.Balance(ctx, req.Account.ID); err == nil {
		result.Balance = balance
	}

	log.Info("generation finished",
		"generation_id", genID,
		"outcome", string(result.Outcome),
		"images", len(images),
		"attempts", attempts,
	)
	return result, nil
}

// newGenerationID 生成记录 ID
func newGenerationID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "gen-" + hex.EncodeToString(b)
}
