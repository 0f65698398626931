package cache

import (
	"context"
	"strings"
	"time"
)

const liveRateCacheTTL = 30 * time.Minute

// LiveRateSnapshot 实时汇率快照，供多个进程共享最近一次抓取结果
type LiveRateSnapshot struct {
	Quote     string            `json:"quote"`
	Rates     map[string]string `json:"rates"`
	Source    string            `json:"source"`
	FetchedAt int64             `json:"fetched_at"`
}

func liveRateKey(quote string) string {
	return "exchange:live:" + strings.ToUpper(strings.TrimSpace(quote))
}

// GetLiveRates 读取实时汇率快照
func GetLiveRates(ctx context.Context, quote string) (*LiveRateSnapshot, error) {
	var snapshot LiveRateSnapshot
	hit, err := GetJSON(ctx, liveRateKey(quote), &snapshot)
	if err != nil || !hit {
		return nil, err
	}
	return &snapshot, nil
}

// SetLiveRates 写入实时汇率快照
func SetLiveRates(ctx context.Context, snapshot *LiveRateSnapshot) error {
	if snapshot == nil {
		return nil
	}
	return SetJSON(ctx, liveRateKey(snapshot.Quote), snapshot, liveRateCacheTTL)
}
