// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package run starts the agent: collectors, quality pipeline, buffered
// writer, ring alignment, warning engine, notifications and the API.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/pkg/aggregator"
	"github.com/geotunnel/edge-agent/pkg/api"
	"github.com/geotunnel/edge-agent/pkg/buffer"
	"github.com/geotunnel/edge-agent/pkg/collector"
	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/notification"
	"github.com/geotunnel/edge-agent/pkg/quality"
	"github.com/geotunnel/edge-agent/pkg/ring"
	"github.com/geotunnel/edge-agent/pkg/scheduler"
	"github.com/geotunnel/edge-agent/pkg/util/log"
	"github.com/geotunnel/edge-agent/pkg/version"
	"github.com/geotunnel/edge-agent/pkg/warning"
	"github.com/geotunnel/edge-agent/pkg/workorder"
)

// Command builds the run subcommand.
func Command(globalParams *command.GlobalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the edge agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(globalParams)
		},
	}
}

func run(globalParams *command.GlobalParams) error {
	if err := config.Setup(globalParams.ConfFilePath); err != nil {
		return err
	}
	logger, err := log.BuildLogger(
		config.Edge.GetString("log_file"),
		config.Edge.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	log.SetupLogger(logger, config.Edge.GetString("log_level"))
	log.Infof("edge agent %s starting", version.Full())

	db, err := database.Open(config.Edge.GetString("db.path"))
	if err != nil {
		return err
	}
	defer db.Close()

	// Quality stages shared by every source.
	thresholds, err := config.LoadThresholds(config.Edge.GetString("thresholds_config"))
	if err != nil {
		return err
	}
	calibrations, err := config.LoadCalibrations(config.Edge.GetString("calibrations_config"))
	if err != nil {
		return err
	}
	validator := quality.NewValidator(thresholds)
	calibrator := quality.NewCalibrator(calibrations)
	checker := quality.NewChecker()

	// Hot reload of the quality configs.
	watcher, err := config.NewWatcher()
	if err != nil {
		log.Warnf("config watcher unavailable: %v", err) //nolint:errcheck
	} else {
		watchQualityConfigs(watcher, validator, calibrator)
		watcher.Start()
		defer watcher.Stop() //nolint:errcheck
	}

	// Buffered batch writer between collectors and sqlite.
	writer := buffer.NewWriter(
		buffer.DatabaseSink{Writer: db},
		config.Edge.GetInt("buffer.max_size"),
		config.Edge.GetInt("buffer.flush_threshold"),
		config.Edge.GetDuration("buffer.flush_interval"),
		config.Edge.GetString("buffer.overflow_policy"))
	writer.Start()
	defer writer.Stop()

	sourcesFile, err := config.LoadSources(config.Edge.GetString("sources_config"))
	if err != nil {
		return err
	}
	sources, err := collector.NewSourceManager(sourcesFile, validator, calibrator, writer)
	if err != nil {
		return err
	}

	// Notification stack.
	warningsCfg, err := config.LoadWarnings(config.Edge.GetString("warnings_config"))
	if err != nil {
		return err
	}
	mqttPub, err := notification.NewMQTTPublisher(warningsCfg.MQTT)
	if err != nil {
		log.Warnf("mqtt publisher unavailable: %v", err) //nolint:errcheck
		mqttPub = nil
	} else {
		defer mqttPub.Close()
	}
	var emailNotifier *notification.EmailNotifier
	if warningsCfg.Email.Enabled {
		emailNotifier = notification.NewEmailNotifier(warningsCfg.Email)
	}
	var smsClient *notification.SMSClient
	if warningsCfg.SMS.Enabled {
		smsClient = notification.NewSMSClient(warningsCfg.SMS)
	}
	router := notification.NewRouter(mqttPub, emailNotifier, smsClient, warningsCfg)
	var retryMgr *notification.RetryManager
	if warningsCfg.Retry.Enabled {
		retryMgr = notification.NewRetryManager(emailNotifier, smsClient,
			warningsCfg.Retry.MaxAttempts, warningsCfg.Retry.MaxTaskAgeHours,
			warningsCfg.Retry.BackoffDelays)
		router.SetRetryManager(retryMgr)
		retryMgr.Start()
		defer retryMgr.Stop()
	}

	// Ring detection, aggregation and warnings.
	detector := ring.NewDetector(db, ring.Config{
		RingWidthMM:      config.Edge.GetFloat64("ring.width_mm"),
		MatchToleranceMM: config.Edge.GetFloat64("ring.match_tolerance_mm"),
		FallbackDuration: config.Edge.GetDuration("ring.fallback_duration"),
		MinDuration:      config.Edge.GetDuration("ring.min_duration"),
		MaxDuration:      config.Edge.GetDuration("ring.max_duration"),
	})
	associator := aggregator.NewAssociator(db,
		time.Duration(config.Edge.GetFloat64("settlement.min_lag_hours")*float64(time.Hour)),
		time.Duration(config.Edge.GetFloat64("settlement.max_lag_hours")*float64(time.Hour)),
		nil)
	machine := aggregator.Machine{
		CutterheadDiameterM: config.Edge.GetFloat64("machine.cutterhead_diameter_m"),
		RingWidthM:          config.Edge.GetFloat64("machine.ring_width_m"),
	}
	aligner := aggregator.NewAligner(db, associator, machine,
		config.Edge.GetString("geological_zone"))

	cachedThresholds := warning.NewCachedThresholds(warning.DBThresholds{DB: db})
	engine := warning.NewEngine(
		cachedThresholds,
		warning.NewRateDetector(db),
		warning.NewPredictiveChecker(db),
		warning.DBSink{DB: db},
		router)
	orders := workorder.NewGenerator(db)

	pipe := &ringPipeline{
		db:       db,
		detector: detector,
		aligner:  aligner,
		engine:   engine,
		orders:   orders,
		mqtt:     mqttPub,
		method:   config.Edge.GetString("ring.detection_method"),
		fallback: config.Edge.GetDuration("ring.fallback_duration"),
	}

	// Background tasks.
	sched := scheduler.New()
	if err := sched.Add("ring-align", config.Edge.GetDuration("scheduler.align_interval"), pipe.alignDue); err != nil {
		return err
	}
	if err := sched.Add("ring-sync", config.Edge.GetDuration("scheduler.sync_interval"), pipe.syncUnsynced); err != nil {
		return err
	}
	if err := sched.AddCron("db-vacuum", config.Edge.GetString("scheduler.vacuum_schedule"),
		func(ctx context.Context) error { return db.Vacuum() }); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// API server.
	addr := fmt.Sprintf("%s:%d",
		config.Edge.GetString("api.bind_address"),
		config.Edge.GetInt("api.port"))
	server := api.NewServer(addr, api.Deps{
		DB:         db,
		Sources:    sources,
		Buffer:     writer,
		Scheduler:  sched,
		Checker:    checker,
		Thresholds: cachedThresholds,
		Orders:     orders,
		Version:    version.AgentVersion,
	})
	server.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Edge.GetBool("collection.autostart") {
		if err := sources.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Info("collection not started, use the control API to begin")
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error { sources.Stop(); return nil })
	g.Go(func() error { return server.Stop(shutdownCtx) })
	return g.Wait()
}

func watchQualityConfigs(w *config.Watcher, v *quality.Validator, c *quality.Calibrator) {
	thresholdsPath := config.Edge.GetString("thresholds_config")
	if err := w.Watch(thresholdsPath, func(path string) {
		cfg, err := config.LoadThresholds(path)
		if err != nil {
			log.Errorf("reloading thresholds: %v", err) //nolint:errcheck
			return
		}
		v.Reload(cfg)
		log.Infof("thresholds reloaded from %s", path)
	}); err != nil {
		log.Warnf("watching %s: %v", thresholdsPath, err) //nolint:errcheck
	}

	calibrationsPath := config.Edge.GetString("calibrations_config")
	if err := w.Watch(calibrationsPath, func(path string) {
		cfg, err := config.LoadCalibrations(path)
		if err != nil {
			log.Errorf("reloading calibrations: %v", err) //nolint:errcheck
			return
		}
		c.Reload(cfg)
		log.Infof("calibrations reloaded from %s", path)
	}); err != nil {
		log.Warnf("watching %s: %v", calibrationsPath, err) //nolint:errcheck
	}
}
