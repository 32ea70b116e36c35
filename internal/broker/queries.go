package broker

import (
	"fmt"
	"sort"
	"time"

	"optback/internal/market"
	"optback/internal/money"
)

// 只读查询。策略通过这些接口观察世界，任何可能被迭代的结果
// 都有确定性排序，保证同一份数据的两次回测逐笔一致。

func (b *Broker) Balance() money.Money        { return b.balance }
func (b *Broker) CommissionPaid() money.Money { return b.commissionPaid }
func (b *Broker) CurrentDate() time.Time      { return b.currentDate }
func (b *Broker) QuotesProcessed() int        { return b.quotesProcessed }
func (b *Broker) QuoteCacheCapacity() int     { return b.quoteCapacity }

func (b *Broker) HighestRealizedBalance() money.Money   { return b.highRealized }
func (b *Broker) LowestRealizedBalance() money.Money    { return b.lowRealized }
func (b *Broker) HighestUnrealizedBalance() money.Money { return b.highUnrealized }
func (b *Broker) LowestUnrealizedBalance() money.Money  { return b.lowUnrealized }
func (b *Broker) FinalUnrealizedBalance() money.Money   { return b.finalUnrealized }

// UnrealizedBalance = 现金 + 全部在册仓位按当日行情的盯市价值。
// 在册仓位缺当日行情时报错而不是静默跳过，否则净值曲线会出现
// 解释不了的缺口。
func (b *Broker) UnrealizedBalance() (money.Money, error) {
	total := b.balance
	for _, p := range b.positions {
		if !p.IsOpen() {
			continue
		}
		q, ok := b.quotes[p.Name()]
		if !ok {
			return money.Zero(), fmt.Errorf("仓位 %s 缺当日行情，无法盯市", p.Name())
		}
		total = total.Add(p.CurrentValue(q))
	}
	return total, nil
}

// QuoteFor 返回合约在当前模拟日的行情。
func (b *Broker) QuoteFor(name string) (*market.Quote, bool) {
	q, ok := b.quotes[name]
	return q, ok
}

// QuotesFor 返回指定标的当日全部合约行情，按合约名排序。
func (b *Broker) QuotesFor(symbol string) []*market.Quote {
	var out []*market.Quote
	for _, q := range b.quotes {
		if q.Symbol() == symbol {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// UnderlyingPriceFor 返回标的最近一次观察到的现价。
func (b *Broker) UnderlyingPriceFor(symbol string) (money.Money, bool) {
	p, ok := b.underlying[symbol]
	return p, ok
}

// Positions 返回全部仓位（含已平），按合约名排序。
func (b *Broker) Positions() []*market.Position {
	out := make([]*market.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// OpenPositions 返回净数量非零的仓位，按合约名排序。
func (b *Broker) OpenPositions() []*market.Position {
	var out []*market.Position
	for _, p := range b.positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// NearestQuotesExpiringBetweenNDays 返回距今严格大于 min、严格小于 max
// 天到期的全部合约行情，按 (剩余天数, put 在前 call 在后, 行权价) 排序。
// 排序让策略可以直接拿"窗口里最近的那一档"而不用自己再排。
func (b *Broker) NearestQuotesExpiringBetweenNDays(min, max int) ([]*market.Quote, error) {
	if min < 0 {
		return nil, fmt.Errorf("min 不能为负: %d", min)
	}
	if min > max {
		return nil, fmt.Errorf("非法窗口: min %d > max %d", min, max)
	}

	var out []*market.Quote
	for _, q := range b.quotes {
		d := q.DaysToExpiration(b.currentDate)
		if d > min && d < max {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		qi, qj := out[i], out[j]
		di, dj := qi.DaysToExpiration(b.currentDate), qj.DaysToExpiration(b.currentDate)
		if di != dj {
			return di < dj
		}
		if qi.IsCall() != qj.IsCall() {
			return !qi.IsCall()
		}
		return qi.StrikePrice().LessThan(qj.StrikePrice())
	})
	return out, nil
}
