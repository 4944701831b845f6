package password

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"tourhive/internal/pkg/metrics"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	metrics.InitMetrics(1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 测试用最低代价因子，cost 12 会让每个用例慢好几百毫秒
	h := NewHasher(logger, bcrypt.MinCost, 2, 4)
	h.Start(context.Background())
	t.Cleanup(h.Shutdown)
	return h
}

func TestHasher_HashVerifyRoundtrip(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if digest == "pass1234" {
		t.Fatal("digest must not equal plaintext")
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Fatalf("expected bcrypt digest, got %q", digest)
	}

	ok, err := h.Verify(ctx, "pass1234", digest)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected matching password to verify")
	}
}

func TestHasher_VerifyMismatch(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// 密码错误不是 error，是 ok=false
	ok, err := h.Verify(ctx, "wrong-password", digest)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("expected mismatch to return false")
	}
}

func TestHasher_HashUniquePerCall(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	a, err := h.Hash(ctx, "pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash(ctx, "pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Error("bcrypt salts must differ between calls")
	}
}

func TestHasher_CanceledContext(t *testing.T) {
	metrics.InitMetrics(1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 不启动 worker 池，任务永远不会被消费
	h := NewHasher(logger, bcrypt.MinCost, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "pass1234"); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestNewHasher_CostFallback(t *testing.T) {
	metrics.InitMetrics(1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHasher(logger, 99, 1, 1)
	if h.cost != 12 {
		t.Errorf("expected cost fallback to 12, got %d", h.cost)
	}
}
