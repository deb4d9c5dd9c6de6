package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/guillermofarina/lognotify/cmd"
	"github.com/guillermofarina/lognotify/internal/publisher"
	"github.com/guillermofarina/lognotify/pkg/configuration"
	"github.com/guillermofarina/lognotify/pkg/logging"
	"github.com/guillermofarina/lognotify/pkg/lognotify"
)

// loadWatchedFiles reads the list of log files to monitor from the
// "ficheros" file in configDir, one path per line. Blank lines are
// ignored; any other line is taken as a file path relative to the
// publisher's log directory.
func loadWatchedFiles(configDir string) ([]string, error) {
	path := filepath.Join(configDir, "ficheros")
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open watched file list (%s)", path)
	}
	defer file.Close()

	var files []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if trimmed := strings.TrimSpace(scanner.Text()); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read watched file list")
	}

	return files, nil
}

// logStartupSizes logs the current, human-readable size of each watched
// file so an operator can sanity-check that the right files are being
// monitored before any events start arriving.
func logStartupSizes(logDirectory string, files []string, logger *logging.Logger) {
	for _, file := range files {
		info, err := os.Stat(filepath.Join(logDirectory, file))
		if err != nil {
			continue
		}
		logger.Debugf("watching %s (%s)", file, humanize.Bytes(uint64(info.Size())))
	}
}

func rootMain(command *cobra.Command, arguments []string) error {
	if cmd.PerformingShellCompletion {
		return nil
	}
	if rootConfiguration.help {
		command.Help()
		return nil
	}
	if rootConfiguration.port <= 0 || rootConfiguration.port > 65535 {
		command.Help()
		return errors.New("a valid TCP port (-p) is required")
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

	logger := logging.RootLogger.Sublogger("publisher")

	files, err := loadWatchedFiles(configDir)
	if err != nil {
		return errors.Wrap(err, "unable to initialize Lognotify")
	}

	server, err := publisher.New(rootConfiguration.port, rootConfiguration.logDirectory, files, logger)
	if err != nil {
		return errors.Wrap(err, "unable to initialize Lognotify")
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)
	go func() {
		<-signals
		cancel()
	}()

	logger.Printf("listening on %s", server.Addr().String())
	logStartupSizes(rootConfiguration.logDirectory, files, logger)

	serveErr := server.Serve(ctx)
	if closeErr := server.Close(); closeErr != nil {
		cmd.Error(errors.Wrap(closeErr, "error during shutdown"))
	}
	if serveErr != nil {
		return errors.Wrap(serveErr, "server terminated")
	}
	return nil
}

var rootCommand = &cobra.Command{
	Use:   "lognotify-publisher",
	Short: "Lognotify-publisher watches log files and broadcasts their changes to connected subscribers.",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(rootMain),
}

var rootConfiguration struct {
	help            bool
	daemonize       bool
	port            int
	configDirectory string
	logDirectory    string
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.IntVarP(&rootConfiguration.port, "port", "p", 0, "Specify the TCP port to listen on (required)")
	flags.BoolVarP(&rootConfiguration.daemonize, "daemonize", "d", false, "Run lognotify-publisher as a daemon")
	flags.StringVarP(&rootConfiguration.configDirectory, "config", "f", "", fmt.Sprintf("Specify an alternate path to %s", defaultConfigHint))
	flags.StringVarP(&rootConfiguration.logDirectory, "log-directory", "w", "/var/log", "Specify an alternate path to /var/log")

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
