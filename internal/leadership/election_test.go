/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected election to fail when Redis is unreachable")
	}
}

func TestNewElectionRejectsRetryLongerThanLease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeaseDuration = time.Second
	cfg.RetryInterval = 2 * time.Second

	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected invalid intervals to be rejected")
	}
}

func TestAlwaysLeader(t *testing.T) {
	var g Gate = AlwaysLeader{}
	if !g.IsLeader() {
		t.Fatal("single instance must always lead")
	}
}
