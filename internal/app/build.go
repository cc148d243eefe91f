package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/quantbench/internal/broker"
	alpacabroker "github.com/newthinker/quantbench/internal/broker/alpaca"
	"github.com/newthinker/quantbench/internal/broker/mock"
	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/collector/alpaca"
	"github.com/newthinker/quantbench/internal/collector/yahoo"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/metrics"
	"github.com/newthinker/quantbench/internal/notifier"
	"github.com/newthinker/quantbench/internal/notifier/email"
	"github.com/newthinker/quantbench/internal/notifier/telegram"
	"github.com/newthinker/quantbench/internal/notifier/webhook"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"go.uber.org/zap"
)

type transportSetter interface {
	SetTransport(rt http.RoundTripper)
}

func (a *App) instrument(t transportSetter) {
	if a.metrics != nil {
		t.SetTransport(metrics.NewTransport(a.metrics, a.logger, nil))
	}
}

// NewStorage opens the archive backend named by cfg.
func NewStorage(ctx context.Context, cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "localfs":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	case "redis":
		return archive.NewRedis(ctx, archive.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", cfg.Type))
	}
}

// providers registers every configured price provider.
func (a *App) providers() *collector.Registry {
	reg := collector.NewRegistry()

	c := a.cfg.Collectors
	alp := alpaca.New(c.Alpaca.BaseURL, c.Alpaca.APIKey, c.Alpaca.APISecret,
		time.Duration(c.Alpaca.TimeoutSec)*time.Second, a.logger)
	a.instrument(alp)
	reg.Register(alp)

	yh := yahoo.New(c.Yahoo.BaseURL, time.Duration(c.Yahoo.TimeoutSec)*time.Second, a.logger)
	a.instrument(yh)
	reg.Register(yh)

	return reg
}

// newBroker returns the alpaca paper client for live runs and the dry-run
// broker otherwise.
func (a *App) newBroker() (broker.Broker, error) {
	bc := a.cfg.Broker
	if !bc.Live {
		return mock.New(a.cfg.Capital.Initial, a.logger), nil
	}
	switch bc.Provider {
	case "alpaca":
		b := alpacabroker.New(bc.BaseURL, bc.APIKey, bc.APISecret, a.logger)
		a.instrument(b)
		return b, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown broker %q", bc.Provider))
	}
}

// newNotifiers initializes every enabled notifier.
func (a *App) newNotifiers() (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for name, nc := range a.cfg.Notifiers {
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		switch name {
		case "webhook":
			n = webhook.New("", nil)
		case "telegram":
			n = telegram.New("", "")
		case "email":
			n = email.New("", 0, "", "", "", nil)
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}

		if err := n.Init(notifier.Config{Type: name, Params: nc.Params()}); err != nil {
			return nil, fmt.Errorf("initializing %s notifier: %w", name, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
		a.logger.Debug("notifier enabled", zap.String("notifier", name))
	}
	return reg, nil
}
