// Command conveyor-sensor counts boxes passing a beam sensor, samples an
// AS5600 angle sensor, and serves both over a serial console, MQTT push
// notifications and periodic HTTP reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/as5600"
	"github.com/sweeney/conveyor-sensor/internal/captive"
	"github.com/sweeney/conveyor-sensor/internal/config"
	"github.com/sweeney/conveyor-sensor/internal/console"
	"github.com/sweeney/conveyor-sensor/internal/controller"
	"github.com/sweeney/conveyor-sensor/internal/gpio"
	"github.com/sweeney/conveyor-sensor/internal/i2cbus"
	"github.com/sweeney/conveyor-sensor/internal/logic"
	"github.com/sweeney/conveyor-sensor/internal/mqtt"
	"github.com/sweeney/conveyor-sensor/internal/network"
	"github.com/sweeney/conveyor-sensor/internal/status"
	"github.com/sweeney/conveyor-sensor/internal/telemetry"
	"github.com/sweeney/conveyor-sensor/internal/web"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Initialize I2C and the angle sensor
	bus, err := i2cbus.Open(cfg.I2C)
	if err != nil {
		return fmt.Errorf("init i2c: %w", err)
	}
	defer bus.Close()
	angle := as5600.New(bus)

	// Print state mode
	if cfg.PrintState {
		level, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(stateLine(level, angle))
		return nil
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:     cfg.Sample.Milliseconds(),
		PushMs:       cfg.PushInterval.Milliseconds(),
		ReportMs:     cfg.ReportInterval.Milliseconds(),
		CollectorURL: cfg.Collector,
		Broker:       cfg.Broker,
	})

	// Start HTTP status server
	srv := web.New(cfg.HTTPAddr, tracker)
	if cfg.HTTPAddr != "" {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	portal := captive.NewServices(cfg.Portal.DNSAddr, cfg.Portal.HTTPAddr, srv.Handler())
	mgr := network.NewManager(network.Config{
		JoinTimeout:  cfg.Network.JoinTimeout,
		PollInterval: network.DefaultConfig().PollInterval,
		AP: network.APConfig{
			SSID:     cfg.Network.APSSID,
			Password: cfg.Network.APPassword,
			Address:  cfg.APAddressIP(),
		},
	},
		network.NewNMStation(cfg.Network.Interface, cfg.Network.JoinTimeout, network.ExecRunner),
		network.NewNMAccessPoint(cfg.Network.Interface, network.ExecRunner),
		portal,
	)

	// Initialize the serial console
	link, err := console.OpenSerial(cfg.Console.Device, cfg.Console.Baud)
	if err != nil {
		return fmt.Errorf("init console: %w", err)
	}

	reporter := telemetry.NewHTTPReporter(cfg.Collector, cfg.ReportTimeout)
	defer reporter.Wait()

	ctrl := controller.New(controller.Config{
		Sample:         cfg.Sample,
		PushInterval:   cfg.PushInterval,
		ReportInterval: cfg.ReportInterval,
	}, controller.Deps{
		Proximity:   gpioReader,
		AngleSensor: angle,
		Console:     link,
		Network:     mgr,
		Reporter:    reporter,
		OpenPush:    openPush(cfg.Broker),
		Tracker:     tracker,
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("close error: %v", err)
		}
	}()

	log.Printf("started: poll=%v sample=%v push=%v report=%v collector=%s broker=%s console=%s",
		cfg.Poll, cfg.Sample, cfg.PushInterval, cfg.ReportInterval, cfg.Collector, cfg.Broker, cfg.Console.Device)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, time.Now, ticker.C, sigCh)
}

// openPush returns the opener for the MQTT push channel. Nothing connects
// to the broker until the node switches to push mode.
func openPush(broker string) controller.PushOpener {
	return func() (telemetry.PushChannel, error) {
		n, err := mqtt.NewRealNotifier(broker)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func runLoop(ctrl *controller.Controller, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctrl.Start()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down (mode=%s boxes=%d)", s, ctrl.Mode(), ctrl.BoxCount())
			return nil

		case <-tick:
			ctrl.Step(now())
		}
	}
}

// magnetSensor is implemented by sensors that report magnet presence.
type magnetSensor interface {
	MagnetDetected() (bool, error)
}

func stateLine(level logic.Level, sensor logic.AngleSensor) string {
	sampler := logic.NewAngleSampler(sensor)
	sample, ok := sampler.Poll()
	if !ok {
		return fmt.Sprintf("Proximity: %s, Angle: not detected", level)
	}
	line := fmt.Sprintf("Proximity: %s, Angle: %d (raw %d, %.1f deg)", level, sample.Angle, sample.Raw, sample.Degrees)
	if m, ok := sensor.(magnetSensor); ok {
		switch detected, err := m.MagnetDetected(); {
		case err != nil:
			line += ", magnet: unknown"
		case detected:
			line += ", magnet: detected"
		default:
			line += ", magnet: missing"
		}
	}
	return line
}
