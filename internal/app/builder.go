package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"optback/internal/broker"
	"optback/internal/commission"
	"optback/internal/config"
	"optback/internal/feed"
	"optback/internal/feed/discountdata"
	"optback/internal/logger"
	"optback/internal/market"
	"optback/internal/model"
	"optback/internal/model/pmcc"
	"optback/internal/model/trend"
	"optback/internal/money"
	"optback/internal/sim"
	"optback/internal/store"
	"optback/internal/web"
)

// AppBuilder 按依赖顺序装配组件：数据源→佣金→策略→结果库→broker→驱动器。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	dataFeed, err := buildFeed(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("初始化数据源失败: %w", err)
	}

	schedule, err := commission.ForName(cfg.Commission.Schedule)
	if err != nil {
		return nil, err
	}

	mdl, err := buildModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	var (
		results *store.ResultStore
		runID   string
	)
	if cfg.Store.Enabled {
		results, err = store.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("初始化结果库失败: %w", err)
		}
		runID, err = results.CreateRun(ctx, mdl.Name(), cfg.Model.Symbol, cfg.InitialBalance())
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("登记回测运行失败: %w", err)
		}
		logger.Infof("[app] 结果库就绪: %s (run %s)", cfg.Store.Path, runID)
	}

	var fillRec broker.Recorder
	if results != nil {
		fillRec = &fillRecorder{results: results, runID: runID}
	}

	brk, err := broker.New(broker.Config{
		InitialBalance: cfg.InitialBalance(),
		Commission:     schedule,
		Feed:           dataFeed,
		MarginMode:     broker.MarginMode(cfg.Broker.MarginMode),
		Recorder:       fillRec,
	})
	if err != nil {
		if results != nil {
			results.Close()
		}
		return nil, err
	}

	var dayRec sim.DayRecorder
	if results != nil {
		dayRec = &dayRecorder{results: results, runID: runID}
	}

	s, err := sim.New(mdl, brk, dayRec)
	if err != nil {
		return nil, err
	}

	var webSrv *web.Server
	if cfg.Web.Enabled {
		webSrv, err = web.NewServer(web.Config{Addr: cfg.Web.Addr, Results: results})
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:     cfg,
		mdl:     mdl,
		broker:  brk,
		sim:     s,
		results: results,
		runID:   runID,
		web:     webSrv,
	}, nil
}

func buildFeed(cfg config.DataConfig) (feed.Feed, error) {
	switch cfg.Feed {
	case "discountdata":
		return discountdata.New(cfg.Path)
	default:
		return nil, fmt.Errorf("未知 data.feed: %s", cfg.Feed)
	}
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Name {
	case "dummy":
		return model.NewDummy(), nil
	case "pmcc":
		return pmcc.New(cfg.Symbol)
	case "trend":
		return trend.New(cfg.Symbol, cfg.SMAPeriod)
	default:
		return nil, fmt.Errorf("未知 model.name: %s", cfg.Name)
	}
}

// fillRecorder 把 broker 的成交实时写进结果库。
// 落库失败只告警，不打断回测本身。
type fillRecorder struct {
	results *store.ResultStore
	runID   string
}

func (r *fillRecorder) RecordFill(f *market.FilledOrder) {
	err := r.results.InsertFill(context.Background(), store.Fill{
		RunID:        r.runID,
		Date:         f.FillDate().Format("2006-01-02"),
		Contract:     f.Name(),
		Side:         f.SideString(),
		Intent:       f.IntentString(),
		Quantity:     f.Quantity(),
		FillPrice:    f.FillPrice().Cents(),
		Commission:   f.Commission().Cents(),
		BrokerClosed: f.ClosedByBroker(),
	})
	if err != nil {
		logger.Warnf("[app] 成交落库失败 (%s): %v", f.Name(), err)
	}
}

type dayRecorder struct {
	results *store.ResultStore
	runID   string
}

func (r *dayRecorder) RecordDay(date time.Time, balance, unrealized money.Money) error {
	return r.results.InsertDaySnapshot(context.Background(), store.DaySnapshot{
		RunID:      r.runID,
		Date:       date.Format("2006-01-02"),
		Balance:    balance.Cents(),
		Unrealized: unrealized.Cents(),
	})
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
