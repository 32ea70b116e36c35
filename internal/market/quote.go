package market

import (
	"fmt"
	"time"

	"optback/internal/money"
)

// ContractMultiplier 是单张期权合约对应的标的股数。
const ContractMultiplier = 100

// Quote 是一张合约在某个交易日的不可变行情快照。
// 同一合约每天会被数据源用一条同名的新 Quote 整体替换。
type Quote struct {
	symbol     string
	name       string
	strike     money.Money
	bid        money.Money
	ask        money.Money
	call       bool
	expiration time.Time
	underlying money.Money
	date       time.Time
}

type QuoteParams struct {
	Symbol          string
	Strike          money.Money
	Bid             money.Money
	Ask             money.Money
	Call            bool
	Expiration      time.Time
	UnderlyingPrice money.Money
	Date            time.Time
}

// NewQuote 构造行情快照。bid > ask 视为脏数据，直接判定整份数据不可用。
func NewQuote(p QuoteParams) (*Quote, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("quote symbol 不能为空")
	}
	if p.Bid.GreaterThan(p.Ask) {
		return nil, fmt.Errorf("行情数据损坏: bid %s > ask %s (%s)", p.Bid, p.Ask, p.Symbol)
	}
	return &Quote{
		symbol:     p.Symbol,
		name:       ContractName(p.Symbol, p.Expiration, p.Call, p.Strike),
		strike:     p.Strike,
		bid:        p.Bid,
		ask:        p.Ask,
		call:       p.Call,
		expiration: p.Expiration,
		underlying: p.UnderlyingPrice,
		date:       p.Date,
	}, nil
}

// ContractName 按 OCC 命名约定生成合约唯一标识，
// 例如 CSCO171117C00019000：symbol + yymmdd + C/P + 行权价×1000 的 8 位零填充。
func ContractName(symbol string, expiration time.Time, call bool, strike money.Money) string {
	t := "P"
	if call {
		t = "C"
	}
	// strike 以美分存储，×10 即为千分之一美元
	return fmt.Sprintf("%s%s%s%08d", symbol, expiration.Format("060102"), t, strike.Cents()*10)
}

func (q *Quote) Symbol() string                { return q.symbol }
func (q *Quote) Name() string                  { return q.name }
func (q *Quote) StrikePrice() money.Money      { return q.strike }
func (q *Quote) Bid() money.Money              { return q.bid }
func (q *Quote) Ask() money.Money              { return q.ask }
func (q *Quote) IsCall() bool                  { return q.call }
func (q *Quote) IsPut() bool                   { return !q.call }
func (q *Quote) ExpirationDate() time.Time     { return q.expiration }
func (q *Quote) UnderlyingPrice() money.Money  { return q.underlying }
func (q *Quote) Date() time.Time               { return q.date }

// MidpointPrice 返回 (bid+ask)/2，除法按 Money 的规则四舍五入到美分。
func (q *Quote) MidpointPrice() money.Money {
	return q.bid.Add(q.ask).DivInt(2)
}

// DaysToExpiration 返回到期日与 asOf 的整数日差，已到期合约为负数。
func (q *Quote) DaysToExpiration(asOf time.Time) int {
	return daysBetween(asOf, q.expiration)
}

// IntrinsicValue 返回内在价值：实值部分，虚值时为零。
func (q *Quote) IntrinsicValue() money.Money {
	if q.call {
		if q.underlying.GreaterThan(q.strike) {
			return q.underlying.Sub(q.strike)
		}
		return money.Zero()
	}
	if q.underlying.LessThan(q.strike) {
		return q.strike.Sub(q.underlying)
	}
	return money.Zero()
}

// ExtrinsicValue 返回时间价值：中间价减去内在价值。
func (q *Quote) ExtrinsicValue() money.Money {
	return q.MidpointPrice().Sub(q.IntrinsicValue())
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
