package password

import (
	"context"
	"fmt"
	"log/slog"

	"tourhive/internal/pkg/metrics"
	"tourhive/internal/pkg/queue"

	"golang.org/x/crypto/bcrypt"
)

// Hasher 负责密码的单向哈希与校验。
//
// bcrypt 在代价因子 12 下单次耗时可观，所有哈希/校验都经过
// 固定大小的 worker 池执行，保证请求接收不被 CPU 打满。
type Hasher struct {
	cost int
	pool *queue.Queue
}

// NewHasher 创建 Hasher 及其内部 worker 池。
//
// 参数:
//   - logger: 日志记录器
//   - cost: bcrypt 代价因子（非法值回落到 12）
//   - workers: worker 数量
//   - capacity: 队列容量
func NewHasher(logger *slog.Logger, cost int, workers int, capacity int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = 12
	}
	return &Hasher{
		cost: cost,
		pool: queue.New(logger, workers, capacity),
	}
}

// Start 启动内部 worker 池。
func (h *Hasher) Start(ctx context.Context) {
	h.pool.Start(ctx)
}

// Shutdown 等待在途哈希任务完成后关闭。
func (h *Hasher) Shutdown() {
	h.pool.Shutdown()
}

// Hash 计算明文密码的 bcrypt 哈希。
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	type result struct {
		digest []byte
		err    error
	}
	out := make(chan result, 1)

	job := func(context.Context) error {
		digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		out <- result{digest: digest, err: err}
		return err
	}

	if err := h.pool.EnqueueBlocking(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue hash job: %w", err)
	}
	metrics.HashPoolDepth.Set(float64(h.pool.Len()))

	select {
	case r := <-out:
		if r.err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", r.err)
		}
		return string(r.digest), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Verify 校验明文密码与存储的哈希是否匹配。
func (h *Hasher) Verify(ctx context.Context, plain, digest string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	out := make(chan result, 1)

	job := func(context.Context) error {
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
		if err == bcrypt.ErrMismatchedHashAndPassword {
			out <- result{ok: false}
			return nil
		}
		if err != nil {
			out <- result{err: err}
			return err
		}
		out <- result{ok: true}
		return nil
	}

	if err := h.pool.EnqueueBlocking(ctx, job); err != nil {
		return false, fmt.Errorf("enqueue verify job: %w", err)
	}
	metrics.HashPoolDepth.Set(float64(h.pool.Len()))

	select {
	case r := <-out:
		if r.err != nil {
			return false, fmt.Errorf("bcrypt compare: %w", r.err)
		}
		return r.ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
