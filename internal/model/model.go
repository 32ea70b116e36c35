// Package model 定义策略接口。策略只通过 broker 的只读查询观察市场，
// 用返回的订单列表表达交易意图，自身不持有任何资金状态。
package model

import (
	"optback/internal/broker"
	"optback/internal/logger"
	"optback/internal/market"
)

// Model 是回测驱动器与策略之间的契约。
// RunLogic 在每个交易日收盘后、下一日行情揭晓之前被调用一次。
type Model interface {
	Name() string
	BeforeSimulation(b *broker.Broker) error
	RunLogic(b *broker.Broker) ([]*market.Order, error)
	AfterSimulation(b *broker.Broker) error
	ShowBODHeader(b *broker.Broker)
	ShowEODSummary(b *broker.Broker)
}

// LogBODHeader 打印交易日开始的分隔横幅，策略可直接复用。
func LogBODHeader(b *broker.Broker) {
	logger.Infof("===== start of %s ======= Balance: %s =================",
		b.CurrentDate().Format("2006-01-02"), b.Balance())
}

// LogEODSummary 打印当日收盘摘要：余额、在册仓位、累计佣金。
func LogEODSummary(b *broker.Broker) {
	day := b.CurrentDate().Format("2006-01-02")
	open := b.OpenPositions()

	logger.Infof(" ----- %s end of day summary -----", day)
	logger.Infof("余额: %s  在册仓位: %d  累计佣金: %s", b.Balance(), len(open), b.CommissionPaid())
	for _, p := range open {
		left := int(p.ExpirationDate().Sub(b.CurrentDate()).Hours() / 24)
		logger.Infof("  %s x%d 到期 %s (剩 %d 天)",
			p.Name(), p.Quantity(), p.ExpirationDate().Format("2006-01-02"), left)
	}
}
