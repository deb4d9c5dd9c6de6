package subscriber

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guillermofarina/lognotify/internal/notify"
	"github.com/guillermofarina/lognotify/pkg/logging"
)

func TestLoadServersParsesAddressPortLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.conf")
	contents := "10.0.0.1/9000\n# comment\nnotaserver\n192.168.1.5/9001\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("unable to write server list: %v", err)
	}

	center := notify.New(&recordingDisplay{}, emptyFilter(t), false, false, 0, logging.RootLogger)
	client := New(center, logging.RootLogger.Sublogger("client-test"))

	if err := client.LoadServers(path); err != nil {
		t.Fatalf("LoadServers failed: %v", err)
	}
	if len(client.servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(client.servers))
	}
	if client.servers[0].Address != "10.0.0.1" || client.servers[0].Port != "9000" {
		t.Fatalf("got %+v", client.servers[0])
	}
	if client.servers[1].Address != "192.168.1.5" || client.servers[1].Port != "9001" {
		t.Fatalf("got %+v", client.servers[1])
	}
}

func TestLoadServersFailsWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.conf")
	if err := os.WriteFile(path, []byte("nothing recognized here\n"), 0644); err != nil {
		t.Fatalf("unable to write server list: %v", err)
	}

	center := notify.New(&recordingDisplay{}, emptyFilter(t), false, false, 0, logging.RootLogger)
	client := New(center, logging.RootLogger.Sublogger("client-test"))

	if err := client.LoadServers(path); err == nil {
		t.Fatal("expected LoadServers to fail when no servers are recognized")
	}
}
