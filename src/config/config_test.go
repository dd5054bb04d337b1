package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/wire"
)

func TestListeningPort(t *testing.T) {
	c := NewTestConfig(t, common.TestLogLevel)

	c.BindAddr = "127.0.0.1:1400"
	if p := c.ListeningPort(); p != 1400 {
		t.Fatalf("port should be 1400, not %d", p)
	}

	c.AdvertiseAddr = "10.0.0.1:1500"
	if p := c.ListeningPort(); p != 1500 {
		t.Fatalf("port should come from the advertise address, not %d", p)
	}

	c.AdvertiseAddr = "garbage"
	if p := c.ListeningPort(); p != 0 {
		t.Fatalf("unparsable address should give port 0, not %d", p)
	}
}

func TestSetDataDir(t *testing.T) {
	c := NewTestConfig(t, common.TestLogLevel)

	c.SetDataDir("/tmp/a")
	if c.DatabaseDir != filepath.Join("/tmp/a", DefaultBadgerFile) {
		t.Fatalf("default database dir should follow the data dir, got %s", c.DatabaseDir)
	}

	c.DatabaseDir = "/tmp/db"
	c.SetDataDir("/tmp/b")
	if c.DatabaseDir != "/tmp/db" {
		t.Fatalf("explicit database dir should be kept, got %s", c.DatabaseDir)
	}
}

func TestOverlayConfig(t *testing.T) {
	c := NewTestConfig(t, common.TestLogLevel)
	c.BindAddr = "127.0.0.1:1400"
	c.MinProtocolVersion = overlay.DefaultProtocolVersion - 1

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	c.Key = key
	c.QuorumSet = &wire.QuorumSet{Threshold: 1, Validators: []string{keys.NodeID(key)}}

	oc, err := c.OverlayConfig()
	if err != nil {
		t.Fatal(err)
	}

	if oc.NodeID != keys.NodeID(key) {
		t.Fatalf("node ID should be derived from the key")
	}
	if oc.ListeningPort != 1400 {
		t.Fatalf("listening port should be 1400, not %d", oc.ListeningPort)
	}
	if oc.MinProtocolVersion != overlay.DefaultProtocolVersion-1 || oc.ProtocolVersion != overlay.DefaultProtocolVersion {
		t.Fatalf("protocol versions not carried over: %+v", oc)
	}
	h, _ := c.QuorumSet.Hash()
	if oc.QuorumSetHash != h {
		t.Fatalf("quorum set hash should be announced")
	}
}

func TestLogLevel(t *testing.T) {
	if LogLevel("warn") != logrus.WarnLevel {
		t.Fatalf("warn should parse")
	}
	if LogLevel("nonsense") != logrus.DebugLevel {
		t.Fatalf("unknown levels should default to debug")
	}
}
