// Package broker 实现回测的核心状态机：现金与持仓台账、撮合算法、
// 逐日推进的行情摄取循环，以及到期强平。
//
// 所有资金状态只在 ProcessOrder 与 ProcessDay 内部同步变更，
// 单写者纪律是台账不变量成立的前提——策略只拿只读查询，
// 通过提交 Order 表达意图。
package broker

import (
	"errors"
	"fmt"
	"io"
	"time"

	"optback/internal/commission"
	"optback/internal/feed"
	"optback/internal/logger"
	"optback/internal/market"
	"optback/internal/money"
)

// MarginMode 决定买入保证金不足时的处理方式。
type MarginMode string

const (
	// MarginAdvisory 记一条警告后照常成交（参考实现的历史行为）。
	MarginAdvisory MarginMode = "advisory"
	// MarginStrict 拒绝成交并返回错误。
	MarginStrict MarginMode = "strict"
)

// DayState 是 ProcessDay 的显式返回状态。
type DayState int

const (
	// DayPaused 表示推进到了换日边界，控制权交还策略。
	DayPaused DayState = iota
	// DayFinished 表示数据源耗尽，之后只剩收尾强平。
	DayFinished
)

func (s DayState) String() string {
	if s == DayFinished {
		return "finished"
	}
	return "paused"
}

// Recorder 把每笔成交转发给外部流水（结果库、日志等）。
// Position 是成交的唯一属主，broker 自己不再留平行的历史列表。
type Recorder interface {
	RecordFill(f *market.FilledOrder)
}

type Config struct {
	InitialBalance money.Money
	Commission     commission.Schedule
	Feed           feed.Feed
	MarginMode     MarginMode
	Recorder       Recorder // 可选
}

// Broker 持有现金余额、持仓簿、滚动的当日行情缓存、标的价格缓存
// 以及运行统计，驱动逐日模拟循环。
type Broker struct {
	balance        money.Money
	positions      map[string]*market.Position
	schedule       commission.Schedule
	commissionPaid money.Money
	feed           feed.Feed
	marginMode     MarginMode
	recorder       Recorder

	// 当日行情缓存，每个模拟日整体换新；容量提示取历史最大当日合约数，
	// 只是省 rehash 的优化，不承担正确性。
	quotes          map[string]*market.Quote
	quoteCapacity   int
	underlying      map[string]money.Money
	currentDate     time.Time
	quotesProcessed int

	// 跨日续接：上次返回时 feed 已经读到了下一天的第一条行情
	carried *market.Quote

	highRealized    money.Money
	lowRealized     money.Money
	highUnrealized  money.Money
	lowUnrealized   money.Money
	finalUnrealized money.Money
}

func New(cfg Config) (*Broker, error) {
	if !cfg.InitialBalance.IsPositive() {
		return nil, fmt.Errorf("初始资金必须 > 0 (got %s)", cfg.InitialBalance)
	}
	if cfg.Commission == nil {
		return nil, fmt.Errorf("commission schedule 不能为空")
	}
	if cfg.Feed == nil {
		return nil, fmt.Errorf("data feed 不能为空")
	}
	mode := cfg.MarginMode
	switch mode {
	case "":
		mode = MarginAdvisory
	case MarginAdvisory, MarginStrict:
	default:
		return nil, fmt.Errorf("未知 margin mode: %s", mode)
	}
	return &Broker{
		balance:         cfg.InitialBalance,
		positions:       make(map[string]*market.Position),
		schedule:        cfg.Commission,
		feed:            cfg.Feed,
		marginMode:      mode,
		recorder:        cfg.Recorder,
		quotes:          make(map[string]*market.Quote),
		underlying:      make(map[string]money.Money),
		highRealized:    cfg.InitialBalance,
		lowRealized:     cfg.InitialBalance,
		highUnrealized:  cfg.InitialBalance,
		lowUnrealized:   cfg.InitialBalance,
		finalUnrealized: cfg.InitialBalance,
	}, nil
}

// ProcessDay 摄取一个模拟日的行情后把控制权交还调用方。
//
// 它是可重入的：换日时真正的续接状态只有 carried 这一条被提前读出的
// 下一日行情，重新调用即从中断处继续。策略因此总是在新一天的价格
// 揭晓之前做决策，杜绝未来函数。
func (b *Broker) ProcessDay() (DayState, error) {
	if err := b.updateStatistics(); err != nil {
		return DayFinished, err
	}

	b.quotes = make(map[string]*market.Quote, b.quoteCapacity)

	if b.carried != nil {
		b.ingest(b.carried)
		b.carried = nil
	}

	// 无条件吃掉一条行情来落定当前日期，省去循环里的首轮特判
	first, err := b.feed.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return b.finish()
		}
		return DayFinished, err
	}
	b.ingest(first)

	for {
		q, err := b.feed.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.finish()
			}
			return DayFinished, err
		}

		if !sameDay(q.Date(), b.currentDate) {
			logger.Debugf("[broker] 换日 %s -> %s", b.currentDate.Format("2006-01-02"), q.Date().Format("2006-01-02"))

			// 在行情缓存被换新之前，用最后交易日的报价强平已到期仓位
			if err := b.closeExpiredPositions(q.Date()); err != nil {
				return DayFinished, err
			}
			if err := b.updateStatistics(); err != nil {
				return DayFinished, err
			}
			b.growCapacityHint()
			b.carried = q
			return DayPaused, nil
		}

		b.ingest(q)
	}
}

func (b *Broker) ingest(q *market.Quote) {
	b.underlying[q.Symbol()] = q.UnderlyingPrice()
	b.currentDate = q.Date()
	b.quotes[q.Name()] = q
	b.quotesProcessed++
}

func (b *Broker) finish() (DayState, error) {
	u, err := b.UnrealizedBalance()
	if err != nil {
		return DayFinished, err
	}
	b.finalUnrealized = u
	b.growCapacityHint()
	return DayFinished, nil
}

func (b *Broker) growCapacityHint() {
	if n := len(b.quotes); n > b.quoteCapacity {
		b.quoteCapacity = n
	}
}

func (b *Broker) updateStatistics() error {
	if b.balance.GreaterThan(b.highRealized) {
		b.highRealized = b.balance
	} else if b.balance.LessThan(b.lowRealized) {
		b.lowRealized = b.balance
	}

	u, err := b.UnrealizedBalance()
	if err != nil {
		return err
	}
	if u.GreaterThan(b.highUnrealized) {
		b.highUnrealized = u
	} else if u.LessThan(b.lowUnrealized) {
		b.lowUnrealized = u
	}
	return nil
}

// ProcessOrder 执行策略提交的订单。请求一个没有当日行情的合约
// 属于调用方错误，无法恢复。
func (b *Broker) ProcessOrder(o *market.Order) error {
	if o == nil {
		return fmt.Errorf("order 不能为空")
	}
	q, ok := b.quotes[o.Name()]
	if !ok {
		return fmt.Errorf("合约 %s 没有当日行情，无法成交", o.Name())
	}
	return b.fillOrder(o, q, false)
}

// fillOrder 是唯一的撮合入口：策略单与强平单走同一条路径。
func (b *Broker) fillOrder(o *market.Order, q *market.Quote, forced bool) error {
	fillPrice := q.MidpointPrice()
	fo := market.NewFilledOrder(o, q, fillPrice, b.currentDate)
	if forced {
		fo.SetClosedByBroker()
	}

	commish := b.schedule.CommissionFor(fo)
	if err := fo.SetCommission(commish); err != nil {
		return fmt.Errorf("佣金表 %s: %w", b.schedule.Name(), err)
	}

	required := fo.CostBasis().Add(commish)
	if fo.IsBuy() && required.GreaterThan(b.balance) {
		// 强平单无论如何都要执行，否则到期仓位会悬在账上
		if b.marginMode == MarginStrict && !forced {
			return fmt.Errorf("资金不足: 需要 %s，可用 %s", required, b.balance)
		}
		logger.Warnf("[broker] 资金不足（需要 %s，可用 %s），advisory 模式继续成交", required, b.balance)
	}

	pos, ok := b.positions[o.Name()]
	if !ok {
		pos = market.NewPosition(q)
		b.positions[o.Name()] = pos
	}
	pos.ApplyFill(fo)

	b.balance = b.balance.Add(fo.CanonicalCostBasis()).Sub(commish)
	b.commissionPaid = b.commissionPaid.Add(commish)

	if b.recorder != nil {
		b.recorder.RecordFill(fo)
	}
	logger.LogFill(logger.FillRecord{
		Contract:     fo.Name(),
		Side:         fo.SideString(),
		Intent:       fo.IntentString(),
		Quantity:     fo.Quantity(),
		FillPrice:    fillPrice.String(),
		Commission:   commish.String(),
		Balance:      b.balance.String(),
		Date:         b.currentDate.Format("2006-01-02"),
		BrokerClosed: forced,
	})
	logger.Debugf("[broker] %s-%s %s x%d @ %s 佣金 %s 余额 %s",
		fo.SideString(), fo.IntentString(), fo.Name(), fo.Quantity(), fillPrice, commish, b.balance)
	return nil
}

type pendingClose struct {
	order *market.Order
	quote *market.Quote
}

// closeExpiredPositions 强平所有在 date 之前（严格早于）到期、
// 策略在最后交易日没有自行平掉的仓位。先对一致的行情快照算出
// 全部平仓单，再统一执行——平掉一个仓位不会影响另一个的平仓价。
func (b *Broker) closeExpiredPositions(date time.Time) error {
	pending, err := b.closingOrders(func(p *market.Position) bool { return p.IsExpired(date) })
	if err != nil {
		return err
	}
	for _, pc := range pending {
		logger.Infof("[broker] 强平到期仓位 %s x%d", pc.order.Name(), pc.order.Quantity())
		if err := b.fillOrder(pc.order, pc.quote, true); err != nil {
			return err
		}
	}
	return nil
}

// CloseAllOpenPositions 在回测收尾时按当前价格平掉所有在册仓位。
func (b *Broker) CloseAllOpenPositions() error {
	pending, err := b.closingOrders(func(*market.Position) bool { return true })
	if err != nil {
		return err
	}
	for _, pc := range pending {
		logger.Infof("[broker] 收尾平仓 %s x%d", pc.order.Name(), pc.order.Quantity())
		if err := b.fillOrder(pc.order, pc.quote, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) closingOrders(match func(*market.Position) bool) ([]pendingClose, error) {
	var pending []pendingClose
	for _, p := range b.OpenPositions() {
		if !match(p) {
			continue
		}
		q, ok := b.quotes[p.Name()]
		if !ok {
			// 定不了价就平不了仓，这是结构性错误
			return nil, fmt.Errorf("无法强平 %s: 没有可用行情", p.Name())
		}
		qty := p.Quantity()
		if qty < 0 {
			qty = -qty
		}

		// 按对持有人最不利的一侧定限价：多头砸 bid，空头抬 ask
		var (
			o   *market.Order
			err error
		)
		if p.IsLong() {
			o, err = market.SellClose(q, qty, q.Bid())
		} else {
			o, err = market.BuyClose(q, qty, q.Ask())
		}
		if err != nil {
			return nil, err
		}
		pending = append(pending, pendingClose{order: o, quote: q})
	}
	return pending, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
