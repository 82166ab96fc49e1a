package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"mixtape/src/config"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "mixtape",
	Short:         "A persistent playlist of local, online and video tracks",
	Version:       fmt.Sprintf("%v (%v, %v)", version, versionDate, build),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", confFile, "Path to the configuration file, .yaml or .toml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")

	rootCmd.AddCommand(serveCmd, addCmd, listCmd, rmCmd, clearCmd)
}

// loadConfig reads the configuration and sets up logging accordingly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("could not parse log level: %v", err)
	}
	log.SetLevel(ll)
	log.SetReportCaller(true)

	conf, err := config.Load(configFile, cmd.Flags().Changed("conf"))
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if errs := conf.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("could not load config: %v", errs)
	}

	if conf.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}))
	}
	return conf, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
