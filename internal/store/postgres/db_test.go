package postgres

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PoolConfig{}.withDefaults()
	if got.MaxOpenConns != 10 || got.MaxIdleConns != 5 {
		t.Fatalf("connection defaults = %d/%d, want 10/5", got.MaxOpenConns, got.MaxIdleConns)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("lifetime defaults = %v/%v", got.ConnMaxLifetime, got.ConnMaxIdleTime)
	}

	tuned := PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    12,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	if got := tuned.withDefaults(); got != tuned {
		t.Fatalf("explicit pool config overridden: %+v", got)
	}
}
