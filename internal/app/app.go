// Package app 负责应用级编排：加载配置→初始化依赖→跑完回测→
// 落库、出报告，需要时再挂起结果查询服务。
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"optback/internal/broker"
	"optback/internal/config"
	"optback/internal/logger"
	"optback/internal/model"
	"optback/internal/report"
	"optback/internal/sim"
	"optback/internal/store"
	"optback/internal/web"
)

// App 持有装配好的全部组件。
type App struct {
	cfg     *config.Config
	mdl     model.Model
	broker  *broker.Broker
	sim     *sim.Simulation
	results *store.ResultStore // 未开启 store 时为 nil
	runID   string
	web     *web.Server // 未开启 web 时为 nil
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 执行回测。web 开启时回测结束后服务继续挂着，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.web != nil {
		group.Go(func() error {
			if err := a.web.Start(ctx); err != nil {
				return fmt.Errorf("web server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		if a.results != nil {
			defer a.results.Close()
		}
		if err := a.runBacktest(ctx); err != nil {
			return err
		}
		if a.web != nil {
			logger.Infof("[app] 回测完成，结果查询服务继续运行 (%s)", a.cfg.Web.Addr)
			<-ctx.Done()
		}
		return nil
	})

	return group.Wait()
}

func (a *App) runBacktest(ctx context.Context) error {
	err := a.sim.Run(ctx)
	if err != nil {
		a.finishRun(store.StatusFailed)
		return err
	}

	a.sim.PrintStats()
	a.finishRun(store.StatusFinished)

	if a.cfg.Report.Enabled && a.results != nil {
		if rerr := a.writeReport(ctx); rerr != nil {
			logger.Errorf("[app] 生成报告失败: %v", rerr)
		}
	}
	return nil
}

func (a *App) finishRun(status string) {
	if a.results == nil {
		return
	}
	err := a.results.FinishRun(context.Background(), store.Run{
		ID:              a.runID,
		Status:          status,
		EndingBalance:   a.broker.Balance().Cents(),
		FinalUnrealized: a.broker.FinalUnrealizedBalance().Cents(),
		CommissionPaid:  a.broker.CommissionPaid().Cents(),
		Days:            a.sim.DaysProcessed(),
		Quotes:          a.broker.QuotesProcessed(),
	})
	if err != nil {
		logger.Errorf("[app] 回填运行结果失败: %v", err)
	}
}

func (a *App) writeReport(ctx context.Context) error {
	snaps, err := a.results.ListDaySnapshots(ctx, a.runID)
	if err != nil {
		return err
	}
	in := report.EquityCurveInput{
		RunID:  a.runID,
		Model:  a.mdl.Name(),
		Symbol: a.cfg.Model.Symbol,
		Days:   snaps,
	}
	if err := report.WriteEquityCurve(a.cfg.Report.HTMLPath, in); err != nil {
		return err
	}
	logger.Infof("[app] 净值曲线已写入 %s", a.cfg.Report.HTMLPath)

	if a.cfg.Report.PNGPath != "" {
		png, err := report.RenderEquityCurvePNG(ctx, in)
		if err != nil {
			return fmt.Errorf("渲染 PNG 失败: %w", err)
		}
		if err := writeFile(a.cfg.Report.PNGPath, png); err != nil {
			return err
		}
		logger.Infof("[app] 净值曲线截图已写入 %s", a.cfg.Report.PNGPath)
	}
	return nil
}

// RunID 返回本次回测在结果库里的档案号，未开启 store 时为空。
func (a *App) RunID() string { return a.runID }

// Broker 暴露底层 broker，测试与回放工具使用。
func (a *App) Broker() *broker.Broker { return a.broker }
