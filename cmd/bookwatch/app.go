package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bookwatch/internal/calendar"
	"bookwatch/internal/config"
	"bookwatch/internal/metrics"
	"bookwatch/internal/monitor"
	"bookwatch/internal/notify"
	"bookwatch/internal/store"
)

// app is the wired process: one monitor plus the registry /metrics serves.
type app struct {
	monitor  *monitor.Monitor
	schedule monitor.Schedule
	registry *prometheus.Registry
}

func newApp(conf *config.Config) (*app, error) {
	schedule := monitor.Schedule{
		Refresh:  conf.Schedule.Refresh,
		Midnight: conf.Schedule.Midnight,
		Morning:  conf.Schedule.Morning,
	}
	if err := monitor.ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	src, err := calendar.NewSource(sourceOptions(conf))
	if err != nil {
		return nil, err
	}

	notifiers, err := buildNotifiers(conf)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := monitor.New(monitor.Options{
		Source:      src,
		Store:       store.NewFileStore(conf.Store.Path, conf.Store.Backups),
		Dispatcher:  notify.NewDispatcher(notifiers...),
		Metrics:     metrics.New(reg),
		Location:    conf.Location(),
		Debounce:    conf.Notify.Debounce,
		PassTimeout: conf.Schedule.PassTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &app{monitor: m, schedule: schedule, registry: reg}, nil
}

func sourceOptions(conf *config.Config) calendar.Options {
	return calendar.Options{
		Kind:             calendar.Kind(conf.Source.Kind),
		URL:              conf.Source.URL,
		HorizonDays:      conf.Source.HorizonDays,
		DefaultMinNights: conf.Listing.MinNights,
		CacheDir:         conf.Source.CacheDir,
		Retry: calendar.RetryConfig{
			InitialInterval: conf.Source.RetryInitial,
			MaxInterval:     conf.Source.RetryMax,
			MaxElapsedTime:  conf.Source.RetryMaxElapsed,
		},
		BrowserTimeout: conf.Source.BrowserTimeout,
	}
}

func buildNotifiers(conf *config.Config) ([]notify.Notifier, error) {
	var out []notify.Notifier
	if conf.Notify.Console {
		out = append(out, notify.NewConsole(os.Stdout))
	}
	if e := conf.Notify.Email; e != nil && e.Host != "" {
		email, err := notify.NewEmail(notify.EmailConfig{
			Host:          e.Host,
			Port:          e.Port,
			Username:      e.Username,
			Password:      e.Password,
			From:          e.From,
			To:            e.To,
			SubjectPrefix: fmt.Sprintf("[%s]", conf.Listing.Name),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, nil
}
