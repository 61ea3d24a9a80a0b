/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build metadata and the optional release watcher.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Build metadata, set at build time via ldflags:
//
//	-X github.com/friendsincode/stallcast/internal/version.Version=X.Y.Z
var (
	Version   = "0.4.0"
	Commit    = "dev"
	BuildDate = ""
)

// String returns the version with commit and build date when known.
func String() string {
	s := Version + " (" + Commit
	if BuildDate != "" {
		s += ", " + BuildDate
	}
	return s + ")"
}

// ErrNoRelease is returned when the repository has not published a release.
var ErrNoRelease = errors.New("no published release")

// ReleaseConfig says where releases of this build are published. An empty
// Repo disables checking.
type ReleaseConfig struct {
	Repo     string // owner/name
	APIURL   string // GitHub compatible API root
	Interval time.Duration
}

// Enabled reports whether a release repository is configured.
func (c ReleaseConfig) Enabled() bool {
	return strings.Count(c.Repo, "/") == 1
}

// UpdateInfo is what /system/version reports about newer releases.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	Repo            string    `json:"repo,omitempty"`
	LatestVersion   string    `json:"latest_version,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Status          string    `json:"status"` // disabled, pending, ok, no_release, error
	CheckedAt       time.Time `json:"checked_at,omitempty"`
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
}

// Checker polls the configured repository for its latest release.
type Checker struct {
	cfg    ReleaseConfig
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	info UpdateInfo
}

// NewChecker creates a checker. It reports "disabled" until a repository is configured.
func NewChecker(cfg ReleaseConfig, logger zerolog.Logger) *Checker {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	status := "disabled"
	if cfg.Enabled() {
		status = "pending"
	}
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "release-check").Str("repo", cfg.Repo).Logger(),
		now:    time.Now,
		info:   UpdateInfo{CurrentVersion: Version, Repo: cfg.Repo, Status: status},
	}
}

// Start checks once, then on every interval until ctx is done.
func (c *Checker) Start(ctx context.Context) {
	if !c.cfg.Enabled() {
		return
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := c.Check(ctx); err != nil && !errors.Is(err, ErrNoRelease) {
			c.logger.Debug().Err(err).Msg("release check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Info returns a copy of the last check result.
func (c *Checker) Info() UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Check fetches the latest release once and records the outcome.
func (c *Checker) Check(ctx context.Context) error {
	if !c.cfg.Enabled() {
		return nil
	}
	rel, err := c.fetchLatest(ctx)

	info := UpdateInfo{CurrentVersion: Version, Repo: c.cfg.Repo, CheckedAt: c.now()}
	switch {
	case errors.Is(err, ErrNoRelease):
		info.Status = "no_release"
	case err != nil:
		info.Status = "error"
	default:
		info.Status = "ok"
		info.LatestVersion = strings.TrimPrefix(rel.TagName, "v")
		info.UpdateAvailable = compareVersions(Version, info.LatestVersion) < 0
		info.ReleaseURL = rel.HTMLURL
		info.Summary = firstLine(rel.Body, 200)
	}

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()

	if info.UpdateAvailable {
		c.logger.Info().
			Str("current", Version).
			Str("latest", info.LatestVersion).
			Msg("newer release published")
	}
	return err
}

func (c *Checker) fetchLatest(ctx context.Context) (*release, error) {
	url := strings.TrimRight(c.cfg.APIURL, "/") + "/repos/" + c.cfg.Repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "stallcast/"+Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoRelease
	default:
		return nil, fmt.Errorf("fetch latest release: status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	if rel.TagName == "" {
		return nil, ErrNoRelease
	}
	return &rel, nil
}

// compareVersions orders dotted versions numerically. Missing parts count as
// zero and pre-release suffixes are ignored.
func compareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := range pa {
		switch {
		case pa[i] < pb[i]:
			return -1
		case pa[i] > pb[i]:
			return 1
		}
	}
	return 0
}

func versionParts(v string) [3]int {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err == nil {
			out[i] = n
		}
	}
	return out
}

func firstLine(s string, maxLen int) string {
	s, _, _ = strings.Cut(s, "\n")
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
