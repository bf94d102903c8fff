package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Sleep(ctx, time.Hour)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("期望 context.Canceled, 实际 %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("取消后 Sleep 应立即返回")
	}
}

func TestSleepZeroDurationChecksContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("已取消的 context 应被观测到, 实际 %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("零时长不应报错: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, cycle time.Time) error {
			if ticks.Add(1) >= 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("期望 context.Canceled, 实际 %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("取消后 Run 应退出")
	}

	if ticks.Load() < 2 {
		t.Fatalf("至少应执行 2 个周期, 实际 %d", ticks.Load())
	}
}

func TestRunTickRecoversPanic(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())

	err := s.runTick(context.Background(), func(ctx context.Context, cycle time.Time) error {
		panic("bad cycle")
	}, time.Now())
	if err == nil {
		t.Fatal("panic 的周期应转换为 error")
	}
	if got := err.Error(); got != "cycle panicked: bad cycle" {
		t.Fatalf("错误信息不符: %q", got)
	}
}

func TestRunAppliesErrorBackoff(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond, ErrorBackoff: time.Hour}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, cycle time.Time) error {
			ticks.Add(1)
			return errors.New("boom")
		})
	}()

	// The failing tick puts the loop into the backoff sleep, which must still
	// observe cancellation.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("backoff 睡眠应被取消, 实际 %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("backoff 期间取消应使 Run 退出")
	}

	if ticks.Load() != 1 {
		t.Fatalf("一小时 backoff 内只应执行 1 个周期, 实际 %d", ticks.Load())
	}
}
