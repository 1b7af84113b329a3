// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/mapping"
	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/rotation"
	"github.com/relabs-tech/headtrack/internal/tracker"
)

// NewSource builds the pose source selected by cfg.Source.
func NewSource(cfg *config.Config) (pose.Source, error) {
	switch cfg.Source {
	case config.SourceMock, "":
		return pose.NewMockSource(), nil
	case config.SourceUDP:
		return pose.NewUDPSource(cfg.UDPListenAddr, time.Duration(cfg.SourceStaleMS)*time.Millisecond), nil
	case config.SourceMQTT:
		return pose.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientIDSource, cfg.TopicPoseRaw), nil
	default:
		return nil, fmt.Errorf("unknown pose source %q", cfg.Source)
	}
}

// TrackerOptions turns cfg into pipeline options, loading the mapping
// presets file when one is configured.
func TrackerOptions(cfg *config.Config) (tracker.Options, error) {
	mappings := mapping.DefaultSet()
	if cfg.MappingFile != "" {
		var err error
		if mappings, err = mapping.LoadFile(cfg.MappingFile); err != nil {
			return tracker.Options{}, err
		}
	}

	comp := rotation.NewCompensator(
		mgl64.Vec3{cfg.PivotOffsetX, cfg.PivotOffsetY, cfg.PivotOffsetZ},
		cfg.CompensateRoll,
	).WithCamera(cfg.CameraYaw, cfg.CameraPitch)

	return tracker.Options{
		SampleInterval: time.Duration(cfg.SampleInterval) * time.Millisecond,
		Compensator:    comp,
		Mappings:       mappings,
		Enabled:        cfg.EnabledAtStart,
		CenterAtStart:  cfg.CenterAtStart,
	}, nil
}

// RunTracker runs the pipeline with its MQTT publisher, MQTT control topic
// and web API until SIGINT/SIGTERM.
func RunTracker() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}
	log.Init(cfg.LogLevel)

	session := uuid.NewString()
	logger := log.With("session", session)
	logger.Info("starting headtrack tracker", "source", cfg.Source)

	src, err := NewSource(cfg)
	if err != nil {
		return err
	}
	opts, err := TrackerOptions(cfg)
	if err != nil {
		return err
	}
	if cfg.TrackLogFile != "" {
		f, err := os.Create(cfg.TrackLogFile)
		if err != nil {
			return fmt.Errorf("failed to create track log: %w", err)
		}
		defer f.Close()
		opts.Recorder = tracker.CSVRecorder(f)
		logger.Info("recording iterations", "file", cfg.TrackLogFile)
	}

	loop := tracker.New(src, opts)
	if err := loop.Start(); err != nil {
		return err
	}
	defer loop.Wait()
	defer loop.RequestStop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- connect to MQTT ---
	mqttOpts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker).
		SetAutoReconnect(true)

	client := mqtt.NewClient(mqttOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		// The pipeline and web API are useful without a broker.
		logger.Warn("MQTT connect error, publishing disabled", "broker", cfg.MQTTBroker, "err", token.Error())
	} else {
		defer client.Disconnect(250)
		if err := subscribeControl(client, cfg.TopicControl, loop); err != nil {
			logger.Warn("MQTT control subscribe error", "topic", cfg.TopicControl, "err", err)
		}
		go publishPoses(ctx, client, cfg.TopicPose, session, loop, time.Duration(cfg.PublishInterval)*time.Millisecond)
		logger.Info("connected to MQTT, publishing poses", "broker", cfg.MQTTBroker, "topic", cfg.TopicPose)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebHandler(loop, session, time.Duration(cfg.PublishInterval)*time.Millisecond),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("web server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server error", "err", err)
			cancel()
		}
	}()

	select {
	case <-ctx.Done():
	case <-loop.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
