package ratefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultTimeout = 10 * time.Second
	rateScale      = 8
)

var (
	ErrConfigInvalid   = errors.New("rate feed config invalid")
	ErrRequestFailed   = errors.New("rate feed request failed")
	ErrResponseInvalid = errors.New("rate feed response invalid")
)

// Snapshot 一次抓取的结果，Rates 表示 1 单位本币折合多少结算币
type Snapshot struct {
	Quote     string
	Source    string
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
}

// Feed 汇率数据源
type Feed interface {
	Name() string
	Fetch(ctx context.Context, quote string) (*Snapshot, error)
}

// Config 汇率源配置
type Config struct {
	URL         string
	Timeout     time.Duration
	StaticRates map[string]string
}

// New 根据配置选择数据源：配置了 URL 时走 HTTP，否则使用静态汇率
func New(cfg Config) (Feed, error) {
	if strings.TrimSpace(cfg.URL) != "" {
		return NewHTTPFeed(cfg.URL, cfg.Timeout), nil
	}
	feed, err := NewStaticFeed(cfg.StaticRates)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// HTTPFeed 从 HTTP 接口拉取汇率
//
// 响应格式为 {"base":"USD","rates":{"THB":34.48,"EUR":"0.92"}}，
// rates 表示 1 单位 base 折合多少对应币种。
type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed 创建 HTTP 汇率源
func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFeed{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

// Name 数据源名称
func (f *HTTPFeed) Name() string {
	return "http"
}

type feedResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]json.RawMessage `json:"rates"`
}

// Fetch 拉取并换算为以 quote 计价的汇率
func (f *HTTPFeed) Fetch(ctx context.Context, quote string) (*Snapshot, error) {
	if f == nil || f.url == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrConfigInvalid)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrResponseInvalid, resp.StatusCode)
	}

	var payload feedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	base := normalizeCode(payload.Base)
	if base == "" || len(payload.Rates) == 0 {
		return nil, fmt.Errorf("%w: missing base or rates", ErrResponseInvalid)
	}
	perBase := make(map[string]decimal.Decimal, len(payload.Rates)+1)
	perBase[base] = decimal.NewFromInt(1)
	for code, raw := range payload.Rates {
		value, err := parseRawDecimal(raw)
		if err != nil || !value.IsPositive() {
			continue
		}
		perBase[normalizeCode(code)] = value
	}
	rates, err := crossRates(perBase, quote)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Quote:     normalizeCode(quote),
		Source:    f.Name(),
		Rates:     rates,
		FetchedAt: time.Now(),
	}, nil
}

// StaticFeed 使用配置文件中的固定汇率
type StaticFeed struct {
	rates map[string]decimal.Decimal
}

// NewStaticFeed 创建静态汇率源，rates 直接表示 1 单位本币折合多少结算币
func NewStaticFeed(raw map[string]string) (*StaticFeed, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for code, value := range raw {
		parsed, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !parsed.IsPositive() {
			return nil, fmt.Errorf("%w: static rate for %s is invalid", ErrConfigInvalid, code)
		}
		rates[normalizeCode(code)] = parsed.Round(rateScale)
	}
	return &StaticFeed{rates: rates}, nil
}

// Name 数据源名称
func (f *StaticFeed) Name() string {
	return "static"
}

// Fetch 返回静态汇率
func (f *StaticFeed) Fetch(_ context.Context, quote string) (*Snapshot, error) {
	rates := make(map[string]decimal.Decimal, len(f.rates))
	for code, rate := range f.rates {
		rates[code] = rate
	}
	return &Snapshot{
		Quote:     normalizeCode(quote),
		Source:    f.Name(),
		Rates:     rates,
		FetchedAt: time.Now(),
	}, nil
}

// crossRates 将以 base 计价的报价换算为 1 单位各币种折合多少 quote
func crossRates(perBase map[string]decimal.Decimal, quote string) (map[string]decimal.Decimal, error) {
	quote = normalizeCode(quote)
	quotePerBase, ok := perBase[quote]
	if !ok {
		return nil, fmt.Errorf("%w: quote %s not present", ErrResponseInvalid, quote)
	}
	rates := make(map[string]decimal.Decimal, len(perBase))
	for code, value := range perBase {
		if code == quote {
			continue
		}
		rates[code] = quotePerBase.DivRound(value, rateScale)
	}
	return rates, nil
}

func parseRawDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, "\"")
	return decimal.NewFromString(text)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
