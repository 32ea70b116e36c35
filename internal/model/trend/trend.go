// Package trend 是一个标的趋势择时策略：逐日累积标的收盘价，
// 价格站上 SMA 时买入近月轻度虚值 call，跌破时全部平仓。
// 主要用来演示用指标驱动 broker 的订单接口，不以收益为目标。
package trend

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"optback/internal/broker"
	"optback/internal/logger"
	"optback/internal/market"
	"optback/internal/model"
	"optback/internal/model/pmcc"
	"optback/internal/money"
)

const (
	entryDaysOutMin = 30
	entryDaysOutMax = 60
	numContracts    = 2
	strikesAbove    = 1
)

type Trend struct {
	symbol string
	period int
	closes []float64
}

func New(symbol string, period int) (*Trend, error) {
	if symbol == "" {
		return nil, fmt.Errorf("trend: symbol 不能为空")
	}
	if period < 2 {
		return nil, fmt.Errorf("trend: SMA 周期必须 >= 2 (got: %d)", period)
	}
	return &Trend{symbol: symbol, period: period}, nil
}

func (m *Trend) Name() string { return fmt.Sprintf("underlying SMA(%d) trend", m.period) }

func (m *Trend) BeforeSimulation(*broker.Broker) error { return nil }
func (m *Trend) AfterSimulation(*broker.Broker) error  { return nil }

func (m *Trend) RunLogic(b *broker.Broker) ([]*market.Order, error) {
	price, ok := b.UnderlyingPriceFor(m.symbol)
	if !ok {
		return nil, fmt.Errorf("trend: 标的 %s 没有现价", m.symbol)
	}
	m.closes = append(m.closes, float64(price.Cents())/100)

	// 均线没凑满之前不表态
	if len(m.closes) < m.period {
		return nil, nil
	}

	sma := talib.Sma(m.closes, m.period)
	last := m.closes[len(m.closes)-1]
	mean := sma[len(sma)-1]
	bullish := last > mean

	logger.Debugf("[trend] close=%.2f sma=%.2f bullish=%v", last, mean, bullish)

	open := b.OpenPositions()
	if bullish {
		if len(open) > 0 {
			return nil, nil // 已持仓，趋势未变
		}
		return m.entryOrders(b, price)
	}
	return m.exitOrders(b, open)
}

func (m *Trend) entryOrders(b *broker.Broker, price money.Money) ([]*market.Order, error) {
	window, err := b.NearestQuotesExpiringBetweenNDays(entryDaysOutMin, entryDaysOutMax)
	if err != nil {
		return nil, err
	}
	var chain []*market.Quote
	for _, q := range window {
		if q.IsCall() && q.Symbol() == m.symbol {
			chain = append(chain, q)
		}
	}
	q := pmcc.NStrikesAbove(chain, strikesAbove, price)
	if q == nil {
		logger.Debugf("[trend] %d-%d 天窗口内没有虚值 call 候选", entryDaysOutMin, entryDaysOutMax)
		return nil, nil
	}
	o, err := market.BuyOpen(q, numContracts, q.MidpointPrice())
	if err != nil {
		return nil, err
	}
	return []*market.Order{o}, nil
}

// exitOrders 为每个在册仓位生成反向平仓单。缺当日行情的仓位跳过，
// 留给 broker 在到期边界处理。
func (m *Trend) exitOrders(b *broker.Broker, open []*market.Position) ([]*market.Order, error) {
	var out []*market.Order
	for _, p := range open {
		q, ok := b.QuoteFor(p.Name())
		if !ok {
			continue
		}
		qty := p.Quantity()
		if qty < 0 {
			qty = -qty
		}
		var (
			o   *market.Order
			err error
		)
		if p.IsLong() {
			o, err = market.SellClose(q, qty, q.MidpointPrice())
		} else {
			o, err = market.BuyClose(q, qty, q.MidpointPrice())
		}
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *Trend) ShowBODHeader(b *broker.Broker)  { model.LogBODHeader(b) }
func (m *Trend) ShowEODSummary(b *broker.Broker) { model.LogEODSummary(b) }
