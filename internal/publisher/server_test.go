package publisher

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guillermofarina/lognotify/pkg/logging"
)

func TestServerBroadcastsAppendToSubscriber(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(logPath, nil, 0644); err != nil {
		t.Fatalf("unable to create log file: %v", err)
	}

	server, err := New(0, dir, []string{"app.log"}, logging.RootLogger.Sublogger("publisher-test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("unable to dial publisher: %v", err)
	}
	defer conn.Close()

	// Give the acceptor a moment to register the connection before we
	// produce the event that should be broadcast to it.
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("unable to open log file: %v", err)
	}
	if _, err := f.WriteString("hello\n"); err != nil {
		t.Fatalf("unable to append: %v", err)
	}
	f.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)

	name, err := reader.ReadString(0)
	if err != nil {
		t.Fatalf("unable to read name field: %v", err)
	}
	if name != "app.log\x00" {
		t.Fatalf("got name field %q", name)
	}

	if _, err := reader.ReadString(0); err != nil {
		t.Fatalf("unable to read location field: %v", err)
	}

	description, err := reader.ReadString(0)
	if err != nil {
		t.Fatalf("unable to read description field: %v", err)
	}
	if description != "hello\x00" {
		t.Fatalf("got description field %q", description)
	}

	cancel()
	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestNewFailsWhenNoFilesCanBeWatched(t *testing.T) {
	dir := t.TempDir()
	_, err := New(0, dir, []string{"does-not-exist.log"}, logging.RootLogger.Sublogger("publisher-test"))
	if err == nil {
		t.Fatal("expected New to fail when no watched files could be opened")
	}
}
