package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vigil/internal/logger"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

// Source 基于 go-binance SDK 的合约行情只读客户端。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

// Kline 单根 K 线（时间为毫秒时间戳）。
type Kline struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OIPoint 未平仓合约统计点。
type OIPoint struct {
	Timestamp       int64
	SumOpenInterest float64
}

// TakerPoint 主动买卖量统计点。
type TakerPoint struct {
	Timestamp int64
	BuyVol    float64
	SellVol   float64
}

// FundingInfo 当前与上一期资金费率；任一侧取不到时为 nil。
type FundingInfo struct {
	Current  *float64
	Previous *float64
}

// Klines 拉取指定周期的 K 线。
func (s *Source) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	var out []Kline
	err := s.withRetry(ctx, "klines", func() error {
		kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, Kline{
				OpenTime:  kl.OpenTime,
				CloseTime: kl.CloseTime,
				Open:      parseFloat(kl.Open),
				High:      parseFloat(kl.High),
				Low:       parseFloat(kl.Low),
				Close:     parseFloat(kl.Close),
				Volume:    parseFloat(kl.Volume),
			})
		}
		return nil
	})
	return out, err
}

// OpenInterestHist 拉取未平仓合约统计序列。
func (s *Source) OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]OIPoint, error) {
	symbol = strings.TrimSpace(symbol)
	period = strings.ToLower(strings.TrimSpace(period))
	if symbol == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}
	var out []OIPoint
	err := s.withRetry(ctx, "open interest", func() error {
		raw, err := s.client.NewOpenInterestStatisticsService().
			Symbol(symbol).
			Period(period).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, item := range raw {
			if item == nil {
				continue
			}
			out = append(out, OIPoint{
				Timestamp:       item.Timestamp,
				SumOpenInterest: parseFloat(item.SumOpenInterest),
			})
		}
		return nil
	})
	return out, err
}

// TakerVolumes 拉取主动买卖量序列。
func (s *Source) TakerVolumes(ctx context.Context, symbol, period string, limit int) ([]TakerPoint, error) {
	symbol = strings.TrimSpace(symbol)
	period = strings.ToLower(strings.TrimSpace(period))
	if symbol == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}
	var out []TakerPoint
	err := s.withRetry(ctx, "taker volumes", func() error {
		raw, err := s.client.NewTakerLongShortRatioService().
			Symbol(symbol).
			Period(period).
			Limit(uint32(limit)).
			Do(ctx)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, item := range raw {
			if item == nil {
				continue
			}
			out = append(out, TakerPoint{
				Timestamp: int64(item.Timestamp),
				BuyVol:    parseFloat(item.BuyVol),
				SellVol:   parseFloat(item.SellVol),
			})
		}
		return nil
	})
	return out, err
}

// Funding 拉取当前资金费率与上一期已结算费率。
func (s *Source) Funding(ctx context.Context, symbol string) (FundingInfo, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return FundingInfo{}, fmt.Errorf("symbol is required")
	}
	var info FundingInfo
	err := s.withRetry(ctx, "funding", func() error {
		premiums, err := s.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		info = FundingInfo{}
		for _, p := range premiums {
			if p == nil {
				continue
			}
			v := parseFloat(p.LastFundingRate)
			info.Current = &v
			break
		}
		history, err := s.client.NewFundingRateService().Symbol(symbol).Limit(2).Do(ctx)
		if err != nil {
			// 上一期费率缺失可以容忍，噪声检测会按“条件不成立”处理。
			logger.Warnf("[binance] 拉取历史资金费率失败 %s: %v", symbol, err)
			return nil
		}
		if len(history) > 0 && history[len(history)-1] != nil {
			v := parseFloat(history[len(history)-1].FundingRate)
			info.Previous = &v
		}
		return nil
	})
	return info, err
}

func (s *Source) withRetry(ctx context.Context, name string, fn func() error) error {
	delay := time.Second
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Warnf("[binance] %s 第 %d/%d 次重试: %v", name, attempt, s.cfg.MaxRetries, err)
			if !sleepWithContext(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
