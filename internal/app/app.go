// Package app 负责应用级编排：加载配置→初始化依赖→启动服务。
package app

import (
	"context"
	"fmt"
	"time"

	"kairos/internal/broker/kis"
	"kairos/internal/config"
	"kairos/internal/logger"
	"kairos/internal/risk"
	"kairos/internal/scheduler"
	"kairos/internal/store"
	"kairos/internal/strategy/params"
	"kairos/internal/trader"
	httpapi "kairos/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 聚合所有常驻组件。
type App struct {
	cfg          *config.Config
	store        *store.Store
	trader       *trader.Service
	server       *httpapi.Server
	params       *params.Table
	pollInterval time.Duration
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	client, err := kis.NewClient(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("初始化券商客户端失败: %w", err)
	}
	gate := risk.NewGate(st, cfg.Risk)
	svc := trader.NewService(client, gate, st)

	table := params.NewTable()
	if cfg.Strategy.ParamsPath != "" {
		if err := table.LoadFile(cfg.Strategy.ParamsPath); err != nil {
			logger.Warnf("策略参数加载失败，使用默认值: %v", err)
		}
	}

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		APIKey:  cfg.App.APIKey,
		Handler: httpapi.NewHandler(svc, st),
	})
	if err != nil {
		return nil, err
	}

	interval, ok := scheduler.ParseIntervalDuration(cfg.Poll.Interval)
	if !ok {
		return nil, fmt.Errorf("非法的轮询周期: %q", cfg.Poll.Interval)
	}

	return &App{
		cfg:          cfg,
		store:        st,
		trader:       svc,
		server:       server,
		params:       table,
		pollInterval: interval,
	}, nil
}

// Run 启动 HTTP 服务与余额轮询，阻塞至 ctx 取消或任一组件出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()

	group, ctx := errgroup.WithContext(ctx)

	if a.cfg.Strategy.ParamsPath != "" {
		if err := a.params.Watch(ctx, a.cfg.Strategy.ParamsPath); err != nil {
			logger.Warnf("策略参数热加载不可用: %v", err)
		}
	}

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.trader.RunPoller(ctx, a.pollInterval)
		return nil
	})

	logger.Infof("kairos started (env=%s, addr=%s, poll=%s)",
		a.cfg.App.Env, a.server.Addr(), a.pollInterval)
	return group.Wait()
}

// Params 暴露策略参数表，回测入口按品种查参数用。
func (a *App) Params() *params.Table { return a.params }
