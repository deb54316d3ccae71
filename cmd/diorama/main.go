// Command diorama runs the train diorama controller: it debounces buttons
// and IR sensors, drives lights, relays and trains, and reports edges over
// MQTT and HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/train-diorama/internal/config"
	"github.com/sweeney/train-diorama/internal/mqtt"
	"github.com/sweeney/train-diorama/internal/status"
	"github.com/sweeney/train-diorama/internal/timer"
	"github.com/sweeney/train-diorama/internal/web"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	tickFlag   time.Duration
	brokerFlag string
	httpFlag   string

	mainCmd = &cobra.Command{
		Use:           "diorama",
		Short:         "Train diorama controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logFormat)
		},
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller until SIGINT or SIGTERM",
		RunE:  runController,
	}
	printStateCmd = &cobra.Command{
		Use:   "print-state",
		Short: "Print the raw level of every input and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			hw, err := openHardware(cfg.Chip)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer hw.Close()
			return printState(cmd.OutOrStdout(), cfg, hw)
		},
	}
	printConfigCmd = &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" && !cmd.Flags().Changed("tick") && !cmd.Flags().Changed("broker") && !cmd.Flags().Changed("http") {
				_, err := io.WriteString(cmd.OutOrStdout(), config.Default)
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
)

func init() {
	pf := mainCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML configuration file (built-in diorama layout if empty)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	pf.DurationVar(&tickFlag, "tick", 0, "override the loop tick")
	pf.StringVar(&brokerFlag, "broker", "", "override the MQTT broker address")
	pf.StringVar(&httpFlag, "http", "", `override the HTTP status address ("off" disables)`)

	mainCmd.AddCommand(runCmd, printStateCmd, printConfigCmd)
}

func main() {
	if err := mainCmd.Execute(); err != nil {
		log.Fatalln("fatal:", err)
	}
}

func setupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("log format: unknown %q", format)
	}
	return nil
}

// loadConfig reads --config (or the built-in layout) and applies flag
// overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Parse(config.Default)
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return config.Config{}, err
	}
	return applyOverrides(cfg, overrides{
		tick:      tickFlag,
		tickSet:   cmd.Flags().Changed("tick"),
		broker:    brokerFlag,
		brokerSet: cmd.Flags().Changed("broker"),
		http:      httpFlag,
		httpSet:   cmd.Flags().Changed("http"),
	})
}

type overrides struct {
	tick      time.Duration
	tickSet   bool
	broker    string
	brokerSet bool
	http      string
	httpSet   bool
}

func applyOverrides(cfg config.Config, o overrides) (config.Config, error) {
	if o.tickSet {
		if o.tick < time.Millisecond || o.tick%time.Millisecond != 0 {
			return config.Config{}, fmt.Errorf("--tick %s: must be a whole number of milliseconds, at least 1ms", o.tick)
		}
		cfg.TickMs = o.tick.Milliseconds()
	}
	if o.brokerSet {
		cfg.Broker = o.broker
	}
	if o.httpSet {
		cfg.HTTPAddr = o.http
		if o.http == "off" {
			cfg.HTTPAddr = ""
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer hw.Close()

	r, err := build(cfg, hw, func() timer.OneShot { return timer.New() })
	if err != nil {
		return err
	}
	defer r.close()

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{Broker: cfg.Broker, ClientID: cfg.ClientID})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(r.loop.StartTime(), statusConfig(cfg))
	wireObservers(r, publisher, publisher, tracker)

	publishSystem(publisher, publisher, tracker, "STARTUP", "")

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server failed")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"tick":      cfg.Tick(),
		"heartbeat": cfg.Heartbeat(),
		"broker":    cfg.Broker,
		"inputs":    len(cfg.Input),
		"outputs":   len(cfg.Output),
	}).Info("started")

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(r, publisher, publisher, tracker, ticker.C, sigCh)
}
