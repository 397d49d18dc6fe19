// internal/scanner/service.go
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/cache"
	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/fetcher"
	"github.com/rovshanmuradov/token-scanner/internal/risk"
	"github.com/rovshanmuradov/token-scanner/internal/session"
	"github.com/rovshanmuradov/token-scanner/internal/throttle"
	"github.com/rovshanmuradov/token-scanner/internal/utils/logger"
)

var (
	// ErrInvalidMint возникает, когда во входной строке нет корректного mint
	ErrInvalidMint = errors.New("no valid mint in input")

	ErrSessionNotFound = session.ErrSessionNotFound
)

// Discoverer is the discovery waterfall.
type Discoverer interface {
	DiscoverRecentPairs(ctx context.Context, limit int) fetcher.DiscoveryResult
}

// DetailAssembler builds a fresh TokenDetail for one candidate.
type DetailAssembler interface {
	Assemble(ctx context.Context, seed domain.PairCandidate) (domain.TokenDetail, error)
}

// Throttler enforces per-user scan cooldowns.
type Throttler interface {
	CheckAndSet(ctx context.Context, userID string, cooldown time.Duration) (throttle.Decision, error)
}

// Sessions stores frozen discovery snapshots.
type Sessions interface {
	Create(items []domain.PairCandidate) (string, error)
	At(id string, index int) (session.Cursor, error)
}

// Options tunes the service.
type Options struct {
	Limit              int
	Cooldown           time.Duration
	PrivilegedCooldown time.Duration
}

// Navigation carries the callback payloads for the controls around a card.
type Navigation struct {
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
	Summary string `json:"summary"`
	Details string `json:"details"`
}

// Page is one rendered position of a session: fresh detail plus its risk.
type Page struct {
	SessionID string             `json:"session_id"`
	Index     int                `json:"index"`
	Total     int                `json:"total"`
	AtStart   bool               `json:"at_start"`
	AtEnd     bool               `json:"at_end"`
	Clamped   bool               `json:"clamped"`
	Detail    domain.TokenDetail `json:"detail"`
	AgeHours  *float64           `json:"age_hours,omitempty"`
	Risk      risk.Assessment    `json:"risk"`
	Nav       Navigation         `json:"nav"`
}

// ScanResult is the outcome of Scan. Page is nil unless Status is ok.
type ScanResult struct {
	Decision  throttle.Decision `json:"decision"`
	Status    fetcher.Status    `json:"status"`
	Strategy  string            `json:"strategy,omitempty"`
	FromCache bool              `json:"from_cache"`
	Page      *Page             `json:"page,omitempty"`
}

// Service ties throttle, cache, discovery, sessions, detail and risk together.
type Service struct {
	discovery Discoverer
	detail    DetailAssembler
	cache     cache.Cache
	sessions  Sessions
	throttle  Throttler
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(d Discoverer, da DetailAssembler, c cache.Cache, s Sessions, t Throttler, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		discovery: d,
		detail:    da,
		cache:     c,
		sessions:  s,
		throttle:  t,
		opts:      opts,
		now:       time.Now,
		logger:    logger.Named("scanner"),
	}
}

// Scan runs one discovery invocation for userID.
func (s *Service) Scan(ctx context.Context, userID string, privileged bool) (ScanResult, error) {
	log := logger.WithOperation(s.logger, "scan").With(zap.String("user_id", userID))

	cooldown := s.opts.Cooldown
	if privileged {
		cooldown = s.opts.PrivilegedCooldown
	}
	decision, err := s.throttle.CheckAndSet(ctx, userID, cooldown)
	if err != nil {
		// хранилище недоступно: пропускаем, пауза по провайдерам остается за rate gate
		log.Warn("throttle store unavailable, allowing scan", zap.Error(err))
		decision = throttle.Decision{Allowed: true}
	}
	if !decision.Allowed {
		return ScanResult{Decision: decision}, nil
	}

	res := ScanResult{Decision: decision, Status: fetcher.StatusOK}
	items, hit := s.cache.Get(ctx)
	if hit {
		res.FromCache = true
	} else {
		discovered := s.discovery.DiscoverRecentPairs(ctx, s.opts.Limit)
		res.Status = discovered.Status
		res.Strategy = discovered.Strategy
		if discovered.Status != fetcher.StatusOK {
			log.Warn("no discovery data")
			return res, nil
		}
		items = discovered.Items
		s.cache.Put(ctx, items)
	}
	if len(items) == 0 {
		res.Status = fetcher.StatusNoData
		return res, nil
	}

	sid, err := s.sessions.Create(items)
	if err != nil {
		return ScanResult{}, fmt.Errorf("create session: %w", err)
	}
	page, err := s.Page(ctx, sid, 0)
	if err != nil {
		return ScanResult{}, err
	}
	res.Page = &page

	log.Info("scan served",
		zap.String("session_id", sid),
		zap.Int("items", len(items)),
		zap.Bool("from_cache", res.FromCache),
		zap.String("strategy", res.Strategy))
	return res, nil
}

// Page renders the item at index of session sid. Out-of-range indices are clamped.
func (s *Service) Page(ctx context.Context, sid string, index int) (Page, error) {
	cur, err := s.sessions.At(sid, index)
	if err != nil {
		return Page{}, err
	}

	detail, err := s.detail.Assemble(ctx, cur.Item)
	if err != nil {
		return Page{}, fmt.Errorf("assemble %s: %w", cur.Item.Mint, err)
	}
	age := detail.AgeHours(s.now())

	return Page{
		SessionID: sid,
		Index:     cur.Index,
		Total:     cur.Total,
		AtStart:   cur.AtStart,
		AtEnd:     cur.AtEnd,
		Clamped:   cur.Clamped,
		Detail:    detail,
		AgeHours:  age,
		Risk:      risk.Score(risk.FromDetail(detail, age)),
		Nav:       navigation(sid, detail.Mint, cur),
	}, nil
}

// Token looks up a single asset from a raw mint or a link containing one.
// The result lives in a one-item session so the same callbacks work for it.
func (s *Service) Token(ctx context.Context, input string) (Page, error) {
	mint, ok := domain.ExtractMint(input)
	if !ok {
		return Page{}, ErrInvalidMint
	}

	sid, err := s.sessions.Create([]domain.PairCandidate{{Mint: mint}})
	if err != nil {
		return Page{}, fmt.Errorf("create session: %w", err)
	}
	return s.Page(ctx, sid, 0)
}

// Callback resolves a dispatcher payload to the page it points at.
func (s *Service) Callback(ctx context.Context, data string) (Page, View, error) {
	cb, err := ParseCallback(data)
	if err != nil {
		return Page{}, "", err
	}
	view := cb.View
	if view == "" {
		view = ViewSummary
	}
	page, err := s.Page(ctx, cb.SessionID, cb.Index)
	return page, view, err
}

func navigation(sid, mint string, cur session.Cursor) Navigation {
	nav := Navigation{
		Summary: Callback{Action: ActionToken, Mint: mint, View: ViewSummary, SessionID: sid, Index: cur.Index}.Encode(),
		Details: Callback{Action: ActionToken, Mint: mint, View: ViewDetails, SessionID: sid, Index: cur.Index}.Encode(),
	}
	if !cur.AtStart {
		nav.Prev = Callback{Action: ActionScan, SessionID: sid, Index: cur.Index - 1}.Encode()
	}
	if !cur.AtEnd {
		nav.Next = Callback{Action: ActionScan, SessionID: sid, Index: cur.Index + 1}.Encode()
	}
	return nav
}
