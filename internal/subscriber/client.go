package subscriber

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/internal/notify"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

// serverListLine recognizes a single "address/port" entry in the server
// list file; anything else is silently skipped.
var serverListLine = regexp.MustCompile(`^[^/]+/[0-9]+$`)

// Client is the subscriber's composition root: it owns the notification
// center and every publisher connection configured for the session, and
// blocks until all of them have disconnected.
type Client struct {
	center  *notify.Center
	servers []*Server
	logger  *logging.Logger
}

// New creates a Client that routes every received event through center.
func New(center *notify.Center, logger *logging.Logger) *Client {
	return &Client{center: center, logger: logger}
}

// LoadServers parses the server list file at path, one "address/port" per
// line, and registers a Server for each recognized line. It fails if the
// file can't be read or if it names no servers at all.
func (c *Client) LoadServers(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "unable to open server list")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !serverListLine.MatchString(line) {
			continue
		}
		separator := strings.LastIndexByte(line, '/')
		address, port := line[:separator], line[separator+1:]
		c.servers = append(c.servers, NewServer(address, port, c.logger.Sublogger(address+"/"+port)))
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "unable to read server list")
	}

	if len(c.servers) == 0 {
		return errors.New("no servers configured")
	}
	return nil
}

// Run connects to every configured server and blocks until every
// connection's receive goroutine has exited (i.e. every publisher has
// disconnected or ctx has been canceled).
func (c *Client) Run(ctx context.Context) error {
	for _, server := range c.servers {
		if err := server.Connect(ctx, c.center); err != nil {
			c.logger.Warn(err)
		}
	}

	go func() {
		<-ctx.Done()
		for _, server := range c.servers {
			server.Disconnect()
		}
	}()

	for _, server := range c.servers {
		server.Wait()
	}
	return nil
}
