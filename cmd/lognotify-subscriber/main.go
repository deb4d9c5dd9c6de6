package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/guillermofarina/lognotify/cmd"
	"github.com/guillermofarina/lognotify/internal/filter"
	"github.com/guillermofarina/lognotify/internal/history"
	"github.com/guillermofarina/lognotify/internal/notify"
	"github.com/guillermofarina/lognotify/internal/subscriber"
	"github.com/guillermofarina/lognotify/pkg/configuration"
	"github.com/guillermofarina/lognotify/pkg/logging"
	"github.com/guillermofarina/lognotify/pkg/lognotify"
)

func rootMain(command *cobra.Command, arguments []string) error {
	if cmd.PerformingShellCompletion {
		return nil
	}
	if rootConfiguration.help {
		command.Help()
		return nil
	}
	if rootConfiguration.expiration < 0 {
		command.Help()
		return errors.New("notification expiration (-t) must not be negative")
	}
	if rootConfiguration.historySessions < 0 {
		command.Help()
		return errors.New("history session count (-s) must not be negative")
	}

	configDir := rootConfiguration.configDirectory
	if configDir == "" {
		var err error
		configDir, err = configuration.DefaultDirectory()
		if err != nil {
			return errors.Wrap(err, "unable to determine default configuration directory")
		}
	}

	environment, err := configuration.LoadEnvironment(configDir)
	if err != nil {
		return err
	}
	if environment["LOGNOTIFY_DEBUG"] == "1" {
		lognotify.DebugEnabled = true
	}
	if level, ok := logging.NameToLevel(environment["LOGNOTIFY_LOG_LEVEL"]); ok {
		logging.SetLevel(level)
	}

	if rootConfiguration.daemonize {
		if err := configuration.Daemonize(os.Args[1:]); err != nil {
			return errors.Wrap(err, "unable to daemonize")
		}
	}

	logger := logging.RootLogger.Sublogger("subscriber")

	ruleSet, err := filter.Load(filepath.Join(configDir, "filtro"), logger.Sublogger("filter"))
	if err != nil {
		return errors.Wrap(err, "unable to initialize Lognotify")
	}

	display := notify.NewStderrDisplay(os.Stderr)
	expiration := time.Duration(rootConfiguration.expiration) * time.Millisecond
	center := notify.New(display, ruleSet, rootConfiguration.showFullPath, rootConfiguration.showSender, expiration, logger.Sublogger("center"))

	if err := center.EnableHistory(filepath.Join(configDir, "historial"), uint(rootConfiguration.historySessions)); err != nil {
		logger.Printf("unable to enable history, continuing without it: %v", err)
	}

	client := subscriber.New(center, logger.Sublogger("client"))
	if err := client.LoadServers(filepath.Join(configDir, "servidores")); err != nil {
		return errors.Wrap(err, "unable to initialize Lognotify")
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)
	go func() {
		<-signals
		cancel()
	}()

	if err := client.Run(ctx); err != nil {
		return errors.Wrap(err, "client terminated")
	}
	return nil
}

var rootCommand = &cobra.Command{
	Use:   "lognotify-subscriber",
	Short: "Lognotify-subscriber connects to publishers and displays filtered notifications for their log changes.",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(rootMain),
}

var rootConfiguration struct {
	help            bool
	daemonize       bool
	configDirectory string
	expiration      int
	historySessions int
	showFullPath    bool
	showSender      bool
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.daemonize, "daemonize", "d", false, "Run lognotify-subscriber as a daemon")
	flags.StringVarP(&rootConfiguration.configDirectory, "config", "f", "", fmt.Sprintf("Specify an alternate path to %s", defaultConfigHint))
	flags.IntVarP(&rootConfiguration.expiration, "expiration", "t", 0, "Specify a notification expiration time in ms")
	flags.IntVarP(&rootConfiguration.historySessions, "history-sessions", "s", history.DefaultOldSessions, "Specify the number of session histories to keep")
	flags.BoolVarP(&rootConfiguration.showFullPath, "full-path", "r", false, "Show the full path of files in notifications")
	flags.BoolVarP(&rootConfiguration.showSender, "show-sender", "o", false, "Show the originating server's address in notifications")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""
}

const defaultConfigHint = "$HOME/.lognotify"

func main() {
	cmd.HandleTerminalCompatibility()

	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
