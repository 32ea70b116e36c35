// Package pmcc 实现 Poor Man's Covered Call：买入远月深度实值 call
// 作为持仓替身，同时滚动卖出近月虚值 call 收取权利金。
package pmcc

import (
	"fmt"

	"optback/internal/broker"
	"optback/internal/logger"
	"optback/internal/market"
	"optback/internal/model"
	"optback/internal/money"
)

const (
	shortDaysOutMin = 30
	shortDaysOutMax = 40
	longDaysOutMin  = 150
	longDaysOutMax  = 200
	numContracts    = 5
	strikesAbove    = 2
	strikesBelow    = 4
)

// NStrikesAbove 在按行权价升序排好的行情链里，返回高于 price
// 第 n 档行权价的那条行情；档位不够时返回 nil。
func NStrikesAbove(quotes []*market.Quote, n int, price money.Money) *market.Quote {
	if n < 1 {
		panic(fmt.Sprintf("n 必须 > 0 (got: %d)", n))
	}
	count := 0
	for _, q := range quotes {
		if q.StrikePrice().GreaterThan(price) {
			count++
			if count == n {
				return q
			}
		}
	}
	return nil
}

// NStrikesBelow 与 NStrikesAbove 对称：从 price 往下数第 n 档。
func NStrikesBelow(quotes []*market.Quote, n int, price money.Money) *market.Quote {
	if n < 1 {
		panic(fmt.Sprintf("n 必须 > 0 (got: %d)", n))
	}
	count := 0
	for i := len(quotes) - 1; i >= 0; i-- {
		if quotes[i].StrikePrice().LessThan(price) {
			count++
			if count == n {
				return quotes[i]
			}
		}
	}
	return nil
}

type PMCC struct {
	symbol string
}

func New(symbol string) (*PMCC, error) {
	if symbol == "" {
		return nil, fmt.Errorf("pmcc: symbol 不能为空")
	}
	return &PMCC{symbol: symbol}, nil
}

func (*PMCC) Name() string { return "Poor Man's Covered Call" }

func (*PMCC) BeforeSimulation(*broker.Broker) error { return nil }
func (*PMCC) AfterSimulation(*broker.Broker) error  { return nil }

// RunLogic 按在册腿数分派：双腿在册时只做管理（当前为空操作，
// 到期腿交给 broker 强平），单腿在册时补齐缺的那条，空仓时
// 两条腿必须同时找到候选才开仓，避免裸腿。
func (m *PMCC) RunLogic(b *broker.Broker) ([]*market.Order, error) {
	open := b.OpenPositions()

	switch len(open) {
	case 2:
		return m.managePositions(b, open)
	case 1:
		if open[0].IsLong() {
			logger.Debugf("[pmcc] 补开近月空头腿")
			o, err := m.newShortLeg(b)
			if err != nil || o == nil {
				return nil, err
			}
			return []*market.Order{o}, nil
		}
		logger.Debugf("[pmcc] 补开远月多头腿")
		o, err := m.newLongLeg(b)
		if err != nil || o == nil {
			return nil, err
		}
		return []*market.Order{o}, nil
	case 0:
		short, err := m.newShortLeg(b)
		if err != nil {
			return nil, err
		}
		long, err := m.newLongLeg(b)
		if err != nil {
			return nil, err
		}
		if short == nil || long == nil {
			logger.Debugf("[pmcc] 两条腿没有凑齐候选，今天不开仓")
			return nil, nil
		}
		return []*market.Order{short, long}, nil
	default:
		return nil, fmt.Errorf("pmcc: 意外的在册仓位数: %d", len(open))
	}
}

func (m *PMCC) managePositions(*broker.Broker, []*market.Position) ([]*market.Order, error) {
	return nil, nil
}

func (m *PMCC) newShortLeg(b *broker.Broker) (*market.Order, error) {
	q, err := m.findLeg(b, shortDaysOutMin, shortDaysOutMax, func(chain []*market.Quote, price money.Money) *market.Quote {
		return NStrikesAbove(chain, strikesAbove, price)
	})
	if err != nil || q == nil {
		return nil, err
	}
	return market.SellOpen(q, numContracts, q.MidpointPrice())
}

func (m *PMCC) newLongLeg(b *broker.Broker) (*market.Order, error) {
	q, err := m.findLeg(b, longDaysOutMin, longDaysOutMax, func(chain []*market.Quote, price money.Money) *market.Quote {
		return NStrikesBelow(chain, strikesBelow, price)
	})
	if err != nil || q == nil {
		return nil, err
	}
	return market.BuyOpen(q, numContracts, q.MidpointPrice())
}

func (m *PMCC) findLeg(b *broker.Broker, minDays, maxDays int, pick func([]*market.Quote, money.Money) *market.Quote) (*market.Quote, error) {
	price, ok := b.UnderlyingPriceFor(m.symbol)
	if !ok {
		return nil, fmt.Errorf("pmcc: 标的 %s 没有现价", m.symbol)
	}

	window, err := b.NearestQuotesExpiringBetweenNDays(minDays, maxDays)
	if err != nil {
		return nil, err
	}

	var chain []*market.Quote
	for _, q := range window {
		if q.IsCall() && q.Symbol() == m.symbol {
			chain = append(chain, q)
		}
	}

	q := pick(chain, price)
	if q == nil {
		logger.Debugf("[pmcc] %d-%d 天窗口内没有合适的档位", minDays, maxDays)
	}
	return q, nil
}

func (*PMCC) ShowBODHeader(b *broker.Broker)  { model.LogBODHeader(b) }
func (*PMCC) ShowEODSummary(b *broker.Broker) { model.LogEODSummary(b) }
