// Package leakwatch periodically reports handle table entries that have
// been alive past a configured threshold. Entries in the table are
// caller-released; this is the safety net that makes forgotten ones
// visible.
package leakwatch

import (
	"fmt"
	"time"

	"global-store/lib/handles"
	"global-store/lib/logger"
	"global-store/lib/utils"
	agg "global-store/modules/aggregate"
	"global-store/modules/config"

	"github.com/chebyrash/promise"
	"github.com/robfig/cron/v3"
)

// ===== types =====

type Config struct {
	Schedule      string `json:"schedule" validate:"required"`
	MaxAgeSeconds int    `json:"max_age_seconds" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Schedule:      "@every 1h",
		MaxAgeSeconds: 3600,
	}
}

type watcher struct {
	conf  *config.Config[Config]
	table *handles.Table
	log   logger.Logger
	cron  *cron.Cron
	stop  chan struct{}
}

// ===== interface assertions =====

var _ agg.Plugin = &watcher{}

// ===== constructor =====

func New(table *handles.Table, conf *config.Config[Config], log logger.Logger) *watcher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &watcher{
		conf:  conf,
		table: table,
		log:   log,
		cron:  cron.New(),
		stop:  make(chan struct{}),
	}
}

// ===== implementing plugin interface =====

func (w *watcher) Init() error {
	return nil
}

func (w *watcher) task() {
	maxAge := time.Duration(w.conf.Get().MaxAgeSeconds) * time.Second
	infos := w.table.Audit(maxAge)
	w.log.Debug("audit:", w.table.Count(), "live entries,", len(infos), "past threshold")
	if len(infos) == 0 {
		return
	}
	lines := utils.Map(infos, func(e handles.EntryInfo) string {
		return fmt.Sprintf("handle=%d type=%s age=%s refs=%d", e.Handle, e.TypeName, e.Age.Round(time.Second), e.Refs)
	})
	w.log.Error("entries past age threshold:", lines)
}

func (w *watcher) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		// run an audit immediately, then on the configured schedule
		go w.task()

		_, err := w.cron.AddFunc(w.conf.Get().Schedule, func() {
			// check if stop signal has been received before running the task
			select {
			case <-w.stop:
				return
			default:
				go w.task()
			}
		})
		if err != nil {
			reject(err)
			return
		}
		w.cron.Start()
		resolve(nil)
	})
}

func (w *watcher) Stop() error {
	// safely close the stop channel
	select {
	case <-w.stop:
		// do nothing, already stopped
	default:
		close(w.stop)
	}
	// stop cron scheduler
	w.cron.Stop()
	return nil
}
