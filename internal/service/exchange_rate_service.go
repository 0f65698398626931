package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wldmarket/internal/cache"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/ratefeed"
	"github.com/wldmarket/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultLiveRateMaxAge = 5 * time.Minute

// RateQuote 汇率查询结果
type RateQuote struct {
	Currency  string      `json:"currency"`
	Quote     string      `json:"quote"`
	Rate      models.Rate `json:"rate"`
	Source    string      `json:"source"` // locked / current
	Scope     string      `json:"scope,omitempty"`
	LockedAt  *time.Time  `json:"locked_at,omitempty"`
	FetchedAt *time.Time  `json:"fetched_at,omitempty"`
}

type liveRate struct {
	rate      decimal.Decimal
	source    string
	fetchedAt time.Time
	syncedAt  time.Time
}

// ExchangeRateService 汇率与汇率锁定服务
//
// 实时汇率只由后台轮询更新，锁定快照独立存储，刷新实时汇率不会改动任何锁定。
// 不运行轮询的进程（如 api 模式）按 maxAge 定期从缓存快照与历史表重新同步内存汇率。
type ExchangeRateService struct {
	repo               repository.ExchangeRateRepository
	settlementCurrency string
	maxAge             time.Duration
	now                func() time.Time

	mu   sync.RWMutex
	live map[string]liveRate
}

// NewExchangeRateService 创建汇率服务
func NewExchangeRateService(repo repository.ExchangeRateRepository, settlementCurrency string) *ExchangeRateService {
	quote := normalizeCurrency(settlementCurrency)
	if quote == "" {
		quote = "USD"
	}
	return &ExchangeRateService{
		repo:               repo,
		settlementCurrency: quote,
		maxAge:             defaultLiveRateMaxAge,
		now:                time.Now,
		live:               make(map[string]liveRate),
	}
}

// WithLiveRateMaxAge 设置内存汇率的有效期，超过后从共享存储重新同步；<=0 表示每次读取都同步
func (s *ExchangeRateService) WithLiveRateMaxAge(maxAge time.Duration) *ExchangeRateService {
	s.maxAge = maxAge
	return s
}

// SettlementCurrency 结算币种
func (s *ExchangeRateService) SettlementCurrency() string {
	return s.settlementCurrency
}

// ProductRateScope 商品维度的锁定范围
func ProductRateScope(productID uint) string {
	return fmt.Sprintf("%s:%d", constants.RateScopeProduct, productID)
}

// SessionRateScope 会话维度的锁定范围
func SessionRateScope(sessionID string) string {
	return fmt.Sprintf("%s:%s", constants.RateScopeSession, strings.TrimSpace(sessionID))
}

func validRateScope(scope string) bool {
	kind, id, ok := strings.Cut(strings.TrimSpace(scope), ":")
	if !ok || strings.TrimSpace(id) == "" {
		return false
	}
	return kind == constants.RateScopeProduct || kind == constants.RateScopeSession
}

// UpdateLiveRates 写入一批实时汇率：记录历史、更新内存并同步到缓存
func (s *ExchangeRateService) UpdateLiveRates(ctx context.Context, source string, rates map[string]decimal.Decimal, fetchedAt time.Time) (int, error) {
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	accepted := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		code = normalizeCurrency(code)
		if code == "" || code == s.settlementCurrency || !rate.IsPositive() {
			logger.Warnw("exchange_rate_skipped", "currency", code, "rate", rate.String(), "source", source)
			continue
		}
		accepted[code] = rate.Round(8)
	}
	if len(accepted) == 0 {
		return 0, fmt.Errorf("%w: no usable rates from %s", ErrRateInvalid, source)
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for code, rate := range accepted {
			row := &models.ExchangeRate{
				Base:      code,
				Quote:     s.settlementCurrency,
				Rate:      models.NewRateFromDecimal(rate),
				Source:    source,
				FetchedAt: fetchedAt,
			}
			if err := repo.CreateRate(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	syncedAt := s.now()
	s.mu.Lock()
	for code, rate := range accepted {
		s.mergeLocked(code, liveRate{rate: rate, source: source, fetchedAt: fetchedAt, syncedAt: syncedAt})
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := cache.SetLiveRates(ctx, snapshot); err != nil {
		logger.Warnw("exchange_rate_cache_set_failed", "quote", s.settlementCurrency, "error", err)
	}
	logger.Infow("exchange_rates_updated", "source", source, "count", len(accepted), "quote", s.settlementCurrency)
	return len(accepted), nil
}

// RefreshFromFeed 从汇率源拉取一次并写入实时汇率
func (s *ExchangeRateService) RefreshFromFeed(ctx context.Context, feed ratefeed.Feed) (int, error) {
	if feed == nil {
		return 0, fmt.Errorf("%w: rate feed not configured", ErrRateUnavailable)
	}
	snapshot, err := feed.Fetch(ctx, s.settlementCurrency)
	if err != nil {
		logger.Warnw("exchange_rate_feed_fetch_failed", "feed", feed.Name(), "error", err)
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	return s.UpdateLiveRates(ctx, snapshot.Source, snapshot.Rates, snapshot.FetchedAt)
}

func (s *ExchangeRateService) snapshotLocked() *cache.LiveRateSnapshot {
	snapshot := &cache.LiveRateSnapshot{
		Quote: s.settlementCurrency,
		Rates: make(map[string]string, len(s.live)),
	}
	var latest time.Time
	for code, item := range s.live {
		snapshot.Rates[code] = item.rate.String()
		if item.fetchedAt.After(latest) {
			latest = item.fetchedAt
			snapshot.Source = item.source
		}
	}
	if !latest.IsZero() {
		snapshot.FetchedAt = latest.Unix()
	}
	return snapshot
}

// LiveRate 返回 1 单位本币折合多少结算币的最新实时汇率
func (s *ExchangeRateService) LiveRate(ctx context.Context, currency string) (decimal.Decimal, time.Time, error) {
	code := normalizeCurrency(currency)
	if code == "" {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: currency is empty", ErrRateInvalid)
	}
	if code == s.settlementCurrency {
		return decimal.NewFromInt(1), time.Time{}, nil
	}
	if item, ok := s.memoryRate(code); ok && s.fresh(item) {
		return item.rate, item.fetchedAt, nil
	}
	if err := s.resync(ctx); err != nil {
		if item, ok := s.memoryRate(code); ok {
			logger.Warnw("exchange_rate_resync_failed", "currency", code, "error", err)
			return item.rate, item.fetchedAt, nil
		}
		return decimal.Zero, time.Time{}, err
	}
	if item, ok := s.memoryRate(code); ok {
		return item.rate, item.fetchedAt, nil
	}
	return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, code, s.settlementCurrency)
}

// LiveRates 返回全部实时汇率，内存数据过期时先重新同步
func (s *ExchangeRateService) LiveRates(ctx context.Context) map[string]string {
	if s.stale() {
		if err := s.resync(ctx); err != nil {
			logger.Warnw("exchange_rate_resync_failed", "error", err)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]string, len(s.live))
	for code, item := range s.live {
		result[code] = item.rate.String()
	}
	return result
}

func (s *ExchangeRateService) memoryRate(code string) (liveRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.live[code]
	return item, ok
}

func (s *ExchangeRateService) fresh(item liveRate) bool {
	return s.maxAge > 0 && s.now().Sub(item.syncedAt) < s.maxAge
}

func (s *ExchangeRateService) stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.live) == 0 {
		return true
	}
	for _, item := range s.live {
		if !s.fresh(item) {
			return true
		}
	}
	return false
}

// resync 先读缓存快照再读历史表，较新的抓取结果覆盖内存中较旧的
func (s *ExchangeRateService) resync(ctx context.Context) error {
	if err := s.warmFromCache(ctx); err != nil {
		logger.Warnw("exchange_rate_cache_get_failed", "quote", s.settlementCurrency, "error", err)
	}
	return s.warmFromDB()
}

// mergeLocked 写入一条实时汇率，抓取时间更早的记录只刷新同步时间
func (s *ExchangeRateService) mergeLocked(code string, item liveRate) {
	current, exists := s.live[code]
	if exists && current.fetchedAt.After(item.fetchedAt) {
		current.syncedAt = item.syncedAt
		s.live[code] = current
		return
	}
	s.live[code] = item
}

func (s *ExchangeRateService) warmFromCache(ctx context.Context) error {
	snapshot, err := cache.GetLiveRates(ctx, s.settlementCurrency)
	if err != nil || snapshot == nil {
		return err
	}
	fetchedAt := time.Unix(snapshot.FetchedAt, 0)
	syncedAt := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, raw := range snapshot.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			continue
		}
		s.mergeLocked(normalizeCurrency(code), liveRate{rate: rate, source: snapshot.Source, fetchedAt: fetchedAt, syncedAt: syncedAt})
	}
	return nil
}

func (s *ExchangeRateService) warmFromDB() error {
	rows, err := s.repo.LatestRates(s.settlementCurrency)
	if err != nil {
		return err
	}
	syncedAt := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.mergeLocked(normalizeCurrency(row.Base), liveRate{rate: row.Rate.Decimal, source: row.Source, fetchedAt: row.FetchedAt, syncedAt: syncedAt})
	}
	return nil
}

// Lock 以当前实时汇率为指定范围和币种创建锁定，已存在的锁定被覆盖
func (s *ExchangeRateService) Lock(ctx context.Context, scope, currency string, ttl time.Duration) (*models.RateLock, error) {
	if !validRateScope(scope) {
		return nil, fmt.Errorf("%w: scope %q", ErrRateInvalid, scope)
	}
	code := normalizeCurrency(currency)
	rate, _, err := s.LiveRate(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.lockAt(scope, code, rate, ttl)
}

// LockAt 以指定汇率锁定，供管理员手工固定汇率
func (s *ExchangeRateService) LockAt(scope, currency string, rate decimal.Decimal, ttl time.Duration) (*models.RateLock, error) {
	if !validRateScope(scope) {
		return nil, fmt.Errorf("%w: scope %q", ErrRateInvalid, scope)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: rate must be positive", ErrRateInvalid)
	}
	code := normalizeCurrency(currency)
	if code == "" {
		return nil, fmt.Errorf("%w: currency is empty", ErrRateInvalid)
	}
	return s.lockAt(scope, code, rate, ttl)
}

func (s *ExchangeRateService) lockAt(scope, code string, rate decimal.Decimal, ttl time.Duration) (*models.RateLock, error) {
	now := time.Now()
	lock := &models.RateLock{
		ScopeKey: strings.TrimSpace(scope),
		Currency: code,
		Quote:    s.settlementCurrency,
		Rate:     models.NewRateFromDecimal(rate),
		LockedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		lock.ExpiresAt = &expiresAt
	}
	if err := s.repo.UpsertLock(lock); err != nil {
		return nil, err
	}
	saved, err := s.repo.GetLock(lock.ScopeKey, code)
	if err != nil {
		return nil, err
	}
	logger.Infow("exchange_rate_locked", "scope", lock.ScopeKey, "currency", code, "rate", lock.Rate.String())
	return saved, nil
}

// Unlock 解除锁定
func (s *ExchangeRateService) Unlock(scope, currency string) error {
	affected, err := s.repo.DeleteLock(strings.TrimSpace(scope), normalizeCurrency(currency))
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRateLockMissing
	}
	logger.Infow("exchange_rate_unlocked", "scope", scope, "currency", normalizeCurrency(currency))
	return nil
}

// ActiveLock 返回范围内仍有效的锁定，过期或不存在时返回 nil
func (s *ExchangeRateService) ActiveLock(scope, currency string) (*models.RateLock, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, nil
	}
	lock, err := s.repo.GetLock(scope, normalizeCurrency(currency))
	if err != nil {
		return nil, err
	}
	if !lock.Active(time.Now()) {
		return nil, nil
	}
	return lock, nil
}

// ListLocks 列出锁定
func (s *ExchangeRateService) ListLocks(scope string) ([]models.RateLock, error) {
	return s.repo.ListLocks(scope)
}

// ListHistory 查询汇率历史
func (s *ExchangeRateService) ListHistory(currency string, limit int) ([]models.ExchangeRate, error) {
	return s.repo.ListHistory(normalizeCurrency(currency), s.settlementCurrency, limit)
}

// RateFor 返回币种的生效汇率：按顺序检查各范围内的有效锁定，都没有时使用实时汇率
func (s *ExchangeRateService) RateFor(ctx context.Context, currency string, scopes ...string) (*RateQuote, error) {
	code := normalizeCurrency(currency)
	if code == "" {
		return nil, fmt.Errorf("%w: currency is empty", ErrRateInvalid)
	}
	for _, scope := range scopes {
		lock, err := s.ActiveLock(scope, code)
		if err != nil {
			return nil, err
		}
		if lock == nil {
			continue
		}
		lockedAt := lock.LockedAt
		return &RateQuote{
			Currency: code,
			Quote:    lock.Quote,
			Rate:     lock.Rate,
			Source:   constants.RateSourceLocked,
			Scope:    lock.ScopeKey,
			LockedAt: &lockedAt,
		}, nil
	}

	rate, fetchedAt, err := s.LiveRate(ctx, code)
	if err != nil {
		return nil, err
	}
	quote := &RateQuote{
		Currency: code,
		Quote:    s.settlementCurrency,
		Rate:     models.NewRateFromDecimal(rate),
		Source:   constants.RateSourceCurrent,
	}
	if !fetchedAt.IsZero() {
		quote.FetchedAt = &fetchedAt
	}
	return quote, nil
}

// ParseRateInput 解析管理端提交的汇率文本
func ParseRateInput(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: rate is empty", ErrRateInvalid)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateInvalid, raw)
	}
	return rate, nil
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
