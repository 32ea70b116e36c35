package broker

import (
	"io"
	"testing"
	"time"

	"optback/internal/commission"
	"optback/internal/market"
	"optback/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceFeed struct {
	quotes []*market.Quote
	i      int
}

func (f *sliceFeed) Next() (*market.Quote, error) {
	if f.i >= len(f.quotes) {
		return nil, io.EOF
	}
	q := f.quotes[f.i]
	f.i++
	return q, nil
}

type captureRecorder struct {
	fills []*market.FilledOrder
}

func (r *captureRecorder) RecordFill(f *market.FilledOrder) { r.fills = append(r.fills, f) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quote(t *testing.T, strikeDollars int64, bidCents, askCents int64, call bool, exp, day time.Time) *market.Quote {
	t.Helper()
	q, err := market.NewQuote(market.QuoteParams{
		Symbol:          "AAPL",
		Strike:          money.FromDollars(strikeDollars),
		Bid:             money.FromCents(bidCents),
		Ask:             money.FromCents(askCents),
		Call:            call,
		Expiration:      exp,
		UnderlyingPrice: money.FromCents(54903),
		Date:            day,
	})
	require.NoError(t, err)
	return q
}

func newBroker(t *testing.T, quotes []*market.Quote, opts ...func(*Config)) *Broker {
	t.Helper()
	cfg := Config{
		InitialBalance: money.FromDollars(10_000),
		Commission:     commission.NewNull(),
		Feed:           &sliceFeed{quotes: quotes},
	}
	for _, o := range opts {
		o(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestNewValidatesConfig(t *testing.T) {
	feed := &sliceFeed{}

	_, err := New(Config{InitialBalance: money.Zero(), Commission: commission.NewNull(), Feed: feed})
	assert.Error(t, err)

	_, err = New(Config{InitialBalance: money.FromDollars(-1), Commission: commission.NewNull(), Feed: feed})
	assert.Error(t, err)

	_, err = New(Config{InitialBalance: money.FromDollars(1), Feed: feed})
	assert.Error(t, err)

	_, err = New(Config{InitialBalance: money.FromDollars(1), Commission: commission.NewNull()})
	assert.Error(t, err)

	_, err = New(Config{InitialBalance: money.FromDollars(1), Commission: commission.NewNull(), Feed: feed, MarginMode: "reckless"})
	assert.Error(t, err)
}

// 两个模拟日、分别 3 和 5 个合约：第一次 ProcessDay 在换日边界暂停一次，
// 第二次在数据耗尽时结束，缓存容量提示收敛到单日最大合约数。
func TestProcessDayPausesAtDayBoundary(t *testing.T) {
	day1 := date(2013, time.January, 2)
	day2 := date(2013, time.January, 3)
	exp := date(2013, time.February, 15)

	var quotes []*market.Quote
	for _, strike := range []int64{530, 540, 550} {
		quotes = append(quotes, quote(t, strike, 1035, 1055, true, exp, day1))
	}
	for _, strike := range []int64{520, 530, 540, 550, 560} {
		quotes = append(quotes, quote(t, strike, 1135, 1155, true, exp, day2))
	}

	b := newBroker(t, quotes)

	paused := 0
	for {
		state, err := b.ProcessDay()
		require.NoError(t, err)
		if state == DayFinished {
			break
		}
		paused++
	}

	assert.Equal(t, 1, paused)
	assert.Equal(t, 8, b.QuotesProcessed())
	assert.Equal(t, 5, b.QuoteCacheCapacity())
	assert.True(t, day2.Equal(b.CurrentDate()))
	assert.Len(t, b.QuotesFor("AAPL"), 5)
}

func TestProcessDayPausedStateKeepsPriorDay(t *testing.T) {
	day1 := date(2013, time.January, 2)
	day2 := date(2013, time.January, 3)
	exp := date(2013, time.February, 15)

	b := newBroker(t, []*market.Quote{
		quote(t, 540, 1035, 1055, true, exp, day1),
		quote(t, 540, 1135, 1155, true, exp, day2),
	})

	state, err := b.ProcessDay()
	require.NoError(t, err)
	assert.Equal(t, DayPaused, state)

	// 暂停时策略看到的仍是刚结束的交易日，下一日的行情还没揭晓
	assert.True(t, day1.Equal(b.CurrentDate()))
	q, ok := b.QuoteFor(market.ContractName("AAPL", exp, true, money.FromDollars(540)))
	require.True(t, ok)
	assert.Equal(t, money.FromCents(1035), q.Bid())
}

func TestProcessOrderRoundTrip(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	q := quote(t, 540, 1035, 1055, true, exp, day1)

	rec := &captureRecorder{}
	b := newBroker(t, []*market.Quote{q}, func(c *Config) {
		c.InitialBalance = money.FromDollars(20_000)
		c.Commission = commission.NewCharlesSchwab()
		c.Recorder = rec
	})

	state, err := b.ProcessDay()
	require.NoError(t, err)
	assert.Equal(t, DayFinished, state)

	buy, err := market.BuyOpen(q, 10, q.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(buy))

	sell, err := market.SellClose(q, 10, q.Bid())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(sell))

	// 同日同中间价一买一卖，净值只少两笔佣金 $11.45 x2
	want := money.FromDollars(20_000).Sub(money.FromCents(2290))
	assert.Equal(t, want, b.Balance())
	assert.Equal(t, money.FromCents(2290), b.CommissionPaid())

	require.Len(t, b.Positions(), 1)
	assert.False(t, b.Positions()[0].IsOpen())
	assert.Empty(t, b.OpenPositions())
	assert.Len(t, rec.fills, 2)
}

func TestProcessOrderRejectsUnknownContract(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	known := quote(t, 540, 1035, 1055, true, exp, day1)
	unknown := quote(t, 999, 100, 120, true, exp, day1)

	b := newBroker(t, []*market.Quote{known})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	o, err := market.BuyOpen(unknown, 1, unknown.Ask())
	require.NoError(t, err)
	assert.Error(t, b.ProcessOrder(o))
	assert.Error(t, b.ProcessOrder(nil))
	assert.Equal(t, money.FromDollars(10_000), b.Balance())
}

func TestStrictMarginRejectsOversizedBuy(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	q := quote(t, 540, 1035, 1055, true, exp, day1)

	b := newBroker(t, []*market.Quote{q}, func(c *Config) {
		c.InitialBalance = money.FromDollars(100)
		c.MarginMode = MarginStrict
	})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	o, err := market.BuyOpen(q, 1, q.Ask())
	require.NoError(t, err)

	// 中间价 $10.45 x100 = $1,045，远超 $100 可用资金
	err = b.ProcessOrder(o)
	assert.ErrorContains(t, err, "资金不足")
	assert.Equal(t, money.FromDollars(100), b.Balance())
	assert.Empty(t, b.Positions())
}

func TestAdvisoryMarginFillsAnyway(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	q := quote(t, 540, 1035, 1055, true, exp, day1)

	b := newBroker(t, []*market.Quote{q}, func(c *Config) {
		c.InitialBalance = money.FromDollars(100)
	})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	o, err := market.BuyOpen(q, 1, q.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(o))

	assert.Equal(t, money.FromCents(10_000-104_500), b.Balance())
	assert.True(t, b.Balance().IsNegative())
	require.Len(t, b.OpenPositions(), 1)
}

// 到期强平发生在换日边界：用最后交易日的行情、按中间价成交，
// 成交记录携带 broker 强平标记。
func TestForcedCloseAtExpiration(t *testing.T) {
	day1 := date(2013, time.January, 2)
	day2 := date(2013, time.January, 3)
	day3 := date(2013, time.January, 7)
	exp := date(2013, time.January, 4)
	laterExp := date(2013, time.February, 15)

	q1 := quote(t, 540, 1035, 1055, true, exp, day1)
	q2 := quote(t, 540, 2000, 2200, true, exp, day2)
	q3 := quote(t, 560, 900, 920, true, laterExp, day3)

	rec := &captureRecorder{}
	b := newBroker(t, []*market.Quote{q1, q2, q3}, func(c *Config) { c.Recorder = rec })

	state, err := b.ProcessDay()
	require.NoError(t, err)
	require.Equal(t, DayPaused, state)

	o, err := market.BuyOpen(q1, 2, q1.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(o))

	// 下一次推进跨过 1/4 到期日，仓位在 1/3 的行情上被强平
	state, err = b.ProcessDay()
	require.NoError(t, err)
	require.Equal(t, DayPaused, state)

	pos := b.Positions()[0]
	assert.False(t, pos.IsOpen())
	require.Equal(t, 2, pos.OrderCount())

	closeFill := pos.Fills()[1]
	assert.True(t, closeFill.ClosedByBroker())
	assert.True(t, closeFill.SellToClose())
	assert.Equal(t, money.FromCents(2100), closeFill.FillPrice())
	assert.True(t, day2.Equal(closeFill.FillDate()))

	// 买入 $10.45、强平 $21.00，各 2 张：净赚 (2100-1045)x100x2 美分
	want := money.FromDollars(10_000).Add(money.FromCents(211_000))
	assert.Equal(t, want, b.Balance())
	assert.Len(t, rec.fills, 2)

	state, err = b.ProcessDay()
	require.NoError(t, err)
	assert.Equal(t, DayFinished, state)
}

func TestExpiringTodayIsNotForceClosed(t *testing.T) {
	day1 := date(2013, time.January, 2)
	day2 := date(2013, time.January, 3)
	exp := day2 // 第二个交易日当天到期

	q1 := quote(t, 540, 1035, 1055, true, exp, day1)
	q2 := quote(t, 540, 1135, 1155, true, exp, day2)

	b := newBroker(t, []*market.Quote{q1, q2})
	state, err := b.ProcessDay()
	require.NoError(t, err)
	require.Equal(t, DayPaused, state)

	o, err := market.BuyOpen(q1, 1, q1.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(o))

	// 换日到到期日当天，策略还有最后一次操作机会，不触发强平
	state, err = b.ProcessDay()
	require.NoError(t, err)
	require.Equal(t, DayFinished, state)
	require.Len(t, b.OpenPositions(), 1)
	assert.True(t, b.OpenPositions()[0].IsOpen())
}

func TestCloseAllOpenPositions(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	long := quote(t, 540, 1035, 1055, true, exp, day1)
	short := quote(t, 560, 500, 520, true, exp, day1)

	b := newBroker(t, []*market.Quote{long, short})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	buy, err := market.BuyOpen(long, 1, long.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(buy))
	sell, err := market.SellOpen(short, 3, short.Bid())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(sell))

	require.NoError(t, b.CloseAllOpenPositions())

	assert.Empty(t, b.OpenPositions())
	for _, p := range b.Positions() {
		last := p.Fills()[p.OrderCount()-1]
		assert.True(t, last.ClosedByBroker())
		assert.True(t, last.IsClose())
	}
	// 全部往返都按同一中间价成交且零佣金，资金应完整回到起点
	assert.Equal(t, money.FromDollars(10_000), b.Balance())
}

func TestUnrealizedBalanceMarksLongsAtBid(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	q := quote(t, 540, 1035, 1055, true, exp, day1)

	b := newBroker(t, []*market.Quote{q})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	o, err := market.BuyOpen(q, 1, q.Ask())
	require.NoError(t, err)
	require.NoError(t, b.ProcessOrder(o))

	u, err := b.UnrealizedBalance()
	require.NoError(t, err)
	// 现金 10000 - 1045 成本，盯市按 bid 10.35 折回
	want := money.FromCents(1_000_000 - 104_500 + 103_500)
	assert.Equal(t, want, u)
}

func TestFinalUnrealizedBalanceRecordedAtExhaustion(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)
	q := quote(t, 540, 1035, 1055, true, exp, day1)

	b := newBroker(t, []*market.Quote{q})
	state, err := b.ProcessDay()
	require.NoError(t, err)
	require.Equal(t, DayFinished, state)

	// 没有任何交易时，期末未实现净值就是初始资金
	assert.Equal(t, money.FromDollars(10_000), b.FinalUnrealizedBalance())
	assert.Equal(t, 1, b.QuoteCacheCapacity())
}

func TestNearestQuotesExpiringBetweenNDays(t *testing.T) {
	day1 := date(2013, time.January, 2)

	near := quote(t, 540, 100, 120, true, date(2013, time.January, 5), day1)    // 3 天
	put10 := quote(t, 540, 200, 220, false, date(2013, time.January, 12), day1) // 10 天
	callA := quote(t, 530, 210, 230, true, date(2013, time.January, 12), day1)  // 10 天
	callB := quote(t, 540, 220, 240, true, date(2013, time.January, 12), day1)  // 10 天
	mid := quote(t, 540, 300, 320, true, date(2013, time.January, 30), day1)    // 28 天
	far := quote(t, 540, 400, 420, true, date(2013, time.February, 20), day1)   // 49 天

	b := newBroker(t, []*market.Quote{near, put10, callA, callB, mid, far})
	_, err := b.ProcessDay()
	require.NoError(t, err)

	got, err := b.NearestQuotesExpiringBetweenNDays(5, 45)
	require.NoError(t, err)

	// 3 天与 49 天落在严格开区间之外；同到期日 put 在 call 前，call 按行权价升序
	require.Len(t, got, 4)
	assert.Equal(t, put10.Name(), got[0].Name())
	assert.Equal(t, callA.Name(), got[1].Name())
	assert.Equal(t, callB.Name(), got[2].Name())
	assert.Equal(t, mid.Name(), got[3].Name())

	// 边界本身不包含
	gotEdge, err := b.NearestQuotesExpiringBetweenNDays(10, 28)
	require.NoError(t, err)
	assert.Empty(t, gotEdge)

	_, err = b.NearestQuotesExpiringBetweenNDays(-1, 10)
	assert.Error(t, err)
	_, err = b.NearestQuotesExpiringBetweenNDays(20, 10)
	assert.Error(t, err)
}

func TestUnderlyingPriceTracksLatestQuote(t *testing.T) {
	day1 := date(2013, time.January, 2)
	exp := date(2013, time.February, 15)

	b := newBroker(t, []*market.Quote{quote(t, 540, 1035, 1055, true, exp, day1)})
	_, ok := b.UnderlyingPriceFor("AAPL")
	assert.False(t, ok)

	_, err := b.ProcessDay()
	require.NoError(t, err)

	p, ok := b.UnderlyingPriceFor("AAPL")
	require.True(t, ok)
	assert.Equal(t, money.FromCents(54903), p)
}
