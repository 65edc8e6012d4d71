package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/stanmore2/internal/bridge"
	"github.com/srg/stanmore2/internal/device/goble"
	"github.com/srg/stanmore2/internal/mqtt"
	"github.com/srg/stanmore2/internal/stanmore"
	"github.com/srg/stanmore2/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the speaker-to-MQTT bridge",
	Long: `Connect to the speaker and the MQTT broker, then bridge the two until
interrupted.

Configuration comes from an optional YAML file plus environment variables
(BLE_ADDRESS, MQTT_HOSTNAME, MQTT_PORT, MQTT_USERNAME, MQTT_PASSWORD,
MQTT_TOPIC_PREFIX, MQTT_RETAIN, ALLOW_PAIRING). The speaker address may also
be given as a positional argument, which takes precedence.

A lost speaker connection ends the process with a non-zero exit code;
restart supervision is the deployment's job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.BLE.Address = args[0]
	}
	if cfg.BLE.Address == "" {
		return fmt.Errorf("no speaker address configured (set ble.address, BLE_ADDRESS, or pass it as an argument)")
	}

	logger, err := serveLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := bridge.Topics{Prefix: cfg.Bridge.TopicPrefix}
	bus, err := mqtt.Connect(mqtt.Options{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		ClientID:  cfg.MQTT.ClientID,
		QoS:       byte(cfg.MQTT.QoS),
		WillTopic: topics.Availability(),
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close MQTT connection")
		}
	}()

	transport := goble.NewTransport(goble.Options{
		Address:        cfg.BLE.Address,
		ConnectTimeout: cfg.BLE.ConnectTimeout(),
	}, logger)
	speaker := stanmore.NewSpeaker(transport, logger)

	// A dropped speaker connection is fatal; nothing can proceed without
	// it and a clean restart re-establishes all subscriptions.
	deviceLost := make(chan struct{})
	b := bridge.New(speaker, bus, bridge.Options{
		TopicPrefix:  cfg.Bridge.TopicPrefix,
		Retain:       cfg.Bridge.Retain,
		QoS:          byte(cfg.MQTT.QoS),
		AllowPairing: cfg.Bridge.AllowPairing,
		SettleDelay:  cfg.Bridge.SettleDelay(),
		OnDeviceLost: func() { close(deviceLost) },
	}, logger)

	if err := speaker.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := speaker.Disconnect(); err != nil {
			logger.WithField("error", err).Warn("Failed to disconnect speaker")
		}
	}()

	if err := b.Start(ctx); err != nil {
		return err
	}

	logger.Info("Bridge running, press Ctrl+C to stop")
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
		return nil
	case <-deviceLost:
		return ErrConnectionLost
	}
}
