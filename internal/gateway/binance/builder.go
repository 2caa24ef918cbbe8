package binance

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/logger"
	symbolpkg "vigil/internal/pkg/symbol"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	barInterval = 5 * time.Minute
	barsPerDay  = 288

	bars15m = 3
	bars1h  = 12
	bars6h  = 72
)

// Builder 每个评估周期为单个标的构建一份特征快照。
// 四类端点并发拉取；单类数据缺失不让整次构建失败，
// 对应特征置 nil，由流水线的空值语义兜底。
type Builder struct {
	source *Source
}

func NewBuilder(source *Source) *Builder {
	return &Builder{source: source}
}

// Build 构建快照。K 线拉取失败视为致命（价格是一切特征的基础）。
func (b *Builder) Build(ctx context.Context, sym string, rules config.CoverageRules) (*feature.Snapshot, error) {
	binanceSymbol := symbolpkg.Parse(sym).Binance()
	if binanceSymbol == "" {
		return nil, fmt.Errorf("无法识别的标的: %q", sym)
	}

	var (
		klines  []Kline
		oi      []OIPoint
		takers  []TakerPoint
		funding FundingInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		klines, err = b.source.Klines(gctx, binanceSymbol, "5m", barsPerDay+1)
		return err
	})
	g.Go(func() error {
		var err error
		if oi, err = b.source.OpenInterestHist(gctx, binanceSymbol, "5m", bars6h+1); err != nil {
			logger.Warnf("[binance] 拉取 OI 失败 %s: %v", sym, err)
			oi = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if takers, err = b.source.TakerVolumes(gctx, binanceSymbol, "5m", bars1h+1); err != nil {
			logger.Warnf("[binance] 拉取主动买卖量失败 %s: %v", sym, err)
			takers = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if funding, err = b.source.Funding(gctx, binanceSymbol); err != nil {
			logger.Warnf("[binance] 拉取资金费率失败 %s: %v", sym, err)
			funding = FundingInfo{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	klines = dropUnclosed(klines, now)
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s 无可用 K 线", sym)
	}

	snap := &feature.Snapshot{
		Features: buildFeatures(klines, oi, takers, funding),
		Coverage: deriveCoverage(klines, rules),
		Meta: feature.Metadata{
			SchemaVersion: feature.SchemaVersion,
			Symbol:        binanceSymbol,
			SourceAt:      time.UnixMilli(klines[len(klines)-1].CloseTime),
			GeneratedAt:   now,
		},
	}
	return snap, nil
}

// dropUnclosed 丢弃尚未收盘的最后一根 K 线。
func dropUnclosed(klines []Kline, now time.Time) []Kline {
	for len(klines) > 0 && klines[len(klines)-1].CloseTime > now.UnixMilli() {
		klines = klines[:len(klines)-1]
	}
	return klines
}

func buildFeatures(klines []Kline, oi []OIPoint, takers []TakerPoint, funding FundingInfo) feature.Set {
	closes := make([]float64, len(klines))
	volumes := make([]float64, len(klines))
	for i, kl := range klines {
		closes[i] = kl.Close
		volumes[i] = kl.Volume
	}

	var set feature.Set
	if len(closes) > 0 {
		set.Price = feature.Ptr(closes[len(closes)-1])
	}
	set.PriceChange5m = changeOver(closes, 1)
	set.PriceChange15m = changeOver(closes, bars15m)
	set.PriceChange1h = changeOver(closes, bars1h)
	set.PriceChange6h = changeOver(closes, bars6h)
	set.PriceChange24h = changeOver(closes, barsPerDay)

	if len(oi) > 0 {
		series := make([]float64, len(oi))
		for i, p := range oi {
			series[i] = p.SumOpenInterest
		}
		set.OpenInterest = feature.Ptr(series[len(series)-1])
		set.OIChange15m = changeOver(series, bars15m)
		set.OIChange1h = changeOver(series, bars1h)
		set.OIChange6h = changeOver(series, bars6h)
	}

	set.TakerImbalance5m = takerImbalance(takers, 1)
	set.TakerImbalance15m = takerImbalance(takers, bars15m)
	set.TakerImbalance1h = takerImbalance(takers, bars1h)

	if base := volumeBaseline(volumes); base != nil {
		last := volumes[len(volumes)-1]
		set.Volume5m = feature.Ptr(last)
		set.VolumeRatio5m = ratioOf(last, *base)
		if len(volumes) >= bars1h {
			var sum float64
			for _, v := range volumes[len(volumes)-bars1h:] {
				sum += v
			}
			set.Volume1h = feature.Ptr(sum)
			set.VolumeRatio1h = ratioOf(sum, *base*bars1h)
		}
	}

	set.FundingRate = funding.Current
	set.PrevFundingRate = funding.Previous
	return set
}

// changeOver 回看 bars 根 K 线的变化比例（小数分数）。
// 数据不足或基值为零返回 nil。
func changeOver(series []float64, bars int) *float64 {
	if bars <= 0 || len(series) <= bars {
		return nil
	}
	last := series[len(series)-1]
	prev := series[len(series)-1-bars]
	if prev == 0 {
		return nil
	}
	d := decimal.NewFromFloat(last).Sub(decimal.NewFromFloat(prev)).
		Div(decimal.NewFromFloat(prev))
	v, _ := d.Float64()
	return feature.Ptr(v)
}

// takerImbalance 最近 bars 个统计点的主动买卖失衡，取值 [-1, 1]。
func takerImbalance(takers []TakerPoint, bars int) *float64 {
	if bars <= 0 || len(takers) < bars {
		return nil
	}
	buy := decimal.Zero
	sell := decimal.Zero
	for _, p := range takers[len(takers)-bars:] {
		buy = buy.Add(decimal.NewFromFloat(p.BuyVol))
		sell = sell.Add(decimal.NewFromFloat(p.SellVol))
	}
	total := buy.Add(sell)
	if total.IsZero() {
		return nil
	}
	v, _ := buy.Sub(sell).Div(total).Float64()
	return feature.Ptr(v)
}

// volumeBaseline 以过去 24h（不含当前 bar）的 SMA 作为量能基线。
func volumeBaseline(volumes []float64) *float64 {
	if len(volumes) < 2 {
		return nil
	}
	history := volumes[:len(volumes)-1]
	period := barsPerDay
	if len(history) < period {
		period = len(history)
	}
	if period < bars1h {
		return nil
	}
	sma := talib.Sma(history, period)
	base := sma[len(sma)-1]
	if base <= 0 {
		return nil
	}
	return feature.Ptr(base)
}

func ratioOf(v, base float64) *float64 {
	if base <= 0 {
		return nil
	}
	return feature.Ptr(v / base)
}

// deriveCoverage 按配置的窗口与覆盖比例推导各时间级别可评估性。
func deriveCoverage(klines []Kline, rules config.CoverageRules) feature.Coverage {
	cov := feature.Coverage{Windows: make(map[string]feature.WindowCoverage)}

	var actual, gap time.Duration
	if len(klines) > 0 {
		first := time.UnixMilli(klines[0].OpenTime)
		last := time.UnixMilli(klines[len(klines)-1].CloseTime)
		actual = last.Sub(first)
		expected := time.Duration(len(klines)) * barInterval
		if actual > expected {
			gap = actual - expected
			actual = expected
		}
	}

	seen := make(map[string]bool)
	check := func(windows []string) bool {
		ok := true
		for _, w := range windows {
			dur, err := config.ParseWindowDuration(w)
			if err != nil {
				ok = false
				continue
			}
			covered := actual
			if covered > dur {
				covered = dur
			}
			cov.Windows[w] = feature.WindowCoverage{
				ActualLookbackSec: covered.Seconds(),
				GapSec:            gap.Seconds(),
			}
			if float64(covered) < rules.Ratio*float64(dur) {
				ok = false
				if !seen[w] {
					seen[w] = true
					cov.MissingWindows = append(cov.MissingWindows, w)
				}
			}
		}
		return ok
	}
	cov.ShortEvaluable = check(rules.ShortWindows)
	cov.MediumEvaluable = check(rules.MediumWindows)
	return cov
}
