// Package sim 是回测驱动器：把 broker 的逐日推进循环和策略的
// 决策回调拼在一起，并在收尾时产出统计报表。
package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optback/internal/broker"
	"optback/internal/logger"
	"optback/internal/model"
	"optback/internal/money"
)

// DayRecorder 接收每个模拟日收盘后的净值快照（净值曲线的原始点）。
type DayRecorder interface {
	RecordDay(date time.Time, balance, unrealized money.Money) error
}

type Simulation struct {
	model    model.Model
	broker   *broker.Broker
	recorder DayRecorder // 可选

	startTime       time.Time
	startingBalance money.Money
	daysProcessed   int
}

func New(m model.Model, b *broker.Broker, rec DayRecorder) (*Simulation, error) {
	if m == nil {
		return nil, fmt.Errorf("model 不能为空")
	}
	if b == nil {
		return nil, fmt.Errorf("broker 不能为空")
	}
	return &Simulation{
		model:           m,
		broker:          b,
		recorder:        rec,
		startingBalance: b.Balance(),
	}, nil
}

// Run 执行完整回测。每个模拟日：broker 推进一日行情，策略在
// 下一日价格揭晓之前决策，订单立即按当日价格成交。数据耗尽后
// 先给 AfterSimulation 一次收尾机会，再强平所有在册仓位。
func (s *Simulation) Run(ctx context.Context) error {
	s.startTime = time.Now()

	logger.Infof("[sim] 启动回测: model=%s 初始资金=%s", s.model.Name(), s.startingBalance)

	if err := s.model.BeforeSimulation(s.broker); err != nil {
		return fmt.Errorf("before simulation: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := s.broker.ProcessDay()
		if err != nil {
			return fmt.Errorf("第 %d 个模拟日: %w", s.daysProcessed+1, err)
		}
		s.daysProcessed++

		s.model.ShowBODHeader(s.broker)

		orders, err := s.model.RunLogic(s.broker)
		if err != nil {
			return fmt.Errorf("策略 %s: %w", s.model.Name(), err)
		}
		for _, o := range orders {
			if err := s.broker.ProcessOrder(o); err != nil {
				return err
			}
		}

		s.model.ShowEODSummary(s.broker)

		if err := s.recordDay(); err != nil {
			return err
		}

		if state == broker.DayFinished {
			break
		}
	}

	if err := s.model.AfterSimulation(s.broker); err != nil {
		return fmt.Errorf("after simulation: %w", err)
	}

	// 最后平仓放在 AfterSimulation 之后，让策略有机会在最后一天
	// 的数据上自行收尾
	if err := s.broker.CloseAllOpenPositions(); err != nil {
		return err
	}

	logger.Infof("[sim] 回测结束: %d 个模拟日, %d 条行情", s.daysProcessed, s.broker.QuotesProcessed())
	return nil
}

func (s *Simulation) recordDay() error {
	if s.recorder == nil {
		return nil
	}
	u, err := s.broker.UnrealizedBalance()
	if err != nil {
		return err
	}
	return s.recorder.RecordDay(s.broker.CurrentDate(), s.broker.Balance(), u)
}

func (s *Simulation) DaysProcessed() int           { return s.daysProcessed }
func (s *Simulation) StartingBalance() money.Money { return s.startingBalance }

// PrintStats 打印持仓流水与整体结果。持仓按合约名顺序给出逐笔
// 成交和滚动余额，之后是资金增长率与佣金占比。
func (s *Simulation) PrintStats() {
	b := s.broker
	balance := b.Balance()
	positions := b.Positions()

	var out strings.Builder
	out.WriteString("===== POSITIONS =====\n")

	runningTotal := s.startingBalance
	totalCommission := money.Zero()
	totalOrders := 0

	for _, pos := range positions {
		fmt.Fprintf(&out, "----- %s -----\n", pos.Name())
		for _, f := range pos.Fills() {
			runningTotal = runningTotal.Add(f.CanonicalCostBasis())
			fmt.Fprintf(&out, "  %s %d 张 @ %s\n", f.SideString(), f.Quantity(), f.FillPrice())
		}
		fmt.Fprintf(&out, "佣金: %s  头寸盈亏: %s  滚动余额: %s\n",
			pos.CommissionPaid(), pos.RealizedProfit(), runningTotal)

		totalCommission = totalCommission.Add(pos.CommissionPaid())
		totalOrders += pos.OrderCount()
	}

	change := balance.Sub(s.startingBalance)
	growth := (float64(balance.Cents())/float64(s.startingBalance.Cents()))*100 - 100

	commissionPct := 0.0
	if change.IsPositive() {
		commissionPct = float64(totalCommission.Cents()) / float64(change.Cents()) * 100
	}

	avgCommission := money.Zero()
	if totalOrders > 0 {
		avgCommission = totalCommission.DivInt(int64(totalOrders))
	}

	out.WriteString("===== RESULTS =====\n")
	fmt.Fprintf(&out, "初始资金: %s\n", s.startingBalance)
	fmt.Fprintf(&out, "期末资金: %s\n", balance)
	fmt.Fprintf(&out, "盈亏: %s (%.2f%%)\n", change, growth)
	fmt.Fprintf(&out, "订单总数: %d\n", totalOrders)
	fmt.Fprintf(&out, "佣金合计: %s (占盈利 %.2f%%)\n", totalCommission, commissionPct)
	fmt.Fprintf(&out, "单笔平均佣金: %s\n", avgCommission)
	fmt.Fprintf(&out, "已实现余额峰值/谷值: %s / %s\n", b.HighestRealizedBalance(), b.LowestRealizedBalance())
	fmt.Fprintf(&out, "未实现余额峰值/谷值: %s / %s\n", b.HighestUnrealizedBalance(), b.LowestUnrealizedBalance())

	elapsed := time.Since(s.startTime).Seconds()
	perSec := 0.0
	if elapsed > 0 {
		perSec = float64(b.QuotesProcessed()) / elapsed
	}
	fmt.Fprintf(&out, "%d 条行情 %.2f 秒 (%.0f 条/秒)\n", b.QuotesProcessed(), elapsed, perSec)

	logger.InfoBlock(out.String())
}
