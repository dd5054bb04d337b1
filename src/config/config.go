package config

import (
	"crypto/ecdsa"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/version"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:11625"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultHandshakeTimeout = 5000 * time.Millisecond
	DefaultConnectInterval  = 2000 * time.Millisecond
	DefaultMaxConnections   = 64
	DefaultTargetPeers      = 8
	DefaultMaxFrameSize     = wire.DefaultMaxFrameSize
	DefaultCacheSize        = 1000
	DefaultStore            = false
)

// Config contains all the configuration properties of an overlay node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of the log output.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node accepts connections.
	// In some cases, there may be a routable address that cannot be bound.
	// Use AdvertiseAddr to advertise a different address to support this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes. Only its port is disclosed in the Hello message; the remote
	// learns our IP from the connection.
	AdvertiseAddr string `mapstructure:"advertise"`

	// ProtocolVersion is the overlay protocol version spoken by this node.
	ProtocolVersion int `mapstructure:"protocol-version"`

	// MinProtocolVersion is the oldest remote protocol version accepted.
	MinProtocolVersion int `mapstructure:"min-protocol-version"`

	// MaxFrameSize is the largest inbound frame accepted.
	MaxFrameSize uint32 `mapstructure:"max-frame-size"`

	// TCPTimeout is the timeout of dials and socket writes.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HandshakeTimeout is the time a connection has to complete the
	// handshake before it is dropped.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	// ConnectInterval is the period of the outbound connection attempts.
	ConnectInterval time.Duration `mapstructure:"connect-interval"`

	// MaxConnections caps the number of open connections. Further inbound
	// connections are refused.
	MaxConnections int `mapstructure:"max-connections"`

	// TargetPeers is the number of outbound connections the node tries to
	// maintain.
	TargetPeers int `mapstructure:"target-peers"`

	// Store activates persistant storage of the peer directory.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of quorum sets held in memory.
	CacheSize int `mapstructure:"cache-size"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node. Its public key is the node ID.
	Key *ecdsa.PrivateKey

	// QuorumSet is the local quorum set, announced in the Hello message.
	QuorumSet *wire.QuorumSet

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		BindAddr:           DefaultBindAddr,
		ServiceAddr:        DefaultServiceAddr,
		ProtocolVersion:    overlay.DefaultProtocolVersion,
		MinProtocolVersion: overlay.DefaultProtocolVersion,
		MaxFrameSize:       DefaultMaxFrameSize,
		TCPTimeout:         DefaultTCPTimeout,
		HandshakeTimeout:   DefaultHandshakeTimeout,
		ConnectInterval:    DefaultConnectInterval,
		MaxConnections:     DefaultMaxConnections,
		TargetPeers:        DefaultTargetPeers,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
		CacheSize:          DefaultCacheSize,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// ListeningPort returns the port disclosed to other nodes: the port of
// AdvertiseAddr if set, of BindAddr otherwise.
func (c *Config) ListeningPort() int {
	addr := c.AdvertiseAddr
	if addr == "" {
		addr = c.BindAddr
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// NodeID returns the identifier of the node, derived from its key. It is
// empty when no key is set.
func (c *Config) NodeID() string {
	if c.Key == nil {
		return ""
	}
	return keys.NodeID(c.Key)
}

// OverlayConfig returns the local information disclosed by every connection of
// the node.
func (c *Config) OverlayConfig() (*overlay.Config, error) {
	oc := overlay.NewConfig(version.Version, c.ListeningPort(), c.NodeID())
	oc.ProtocolVersion = c.ProtocolVersion
	oc.MinProtocolVersion = c.MinProtocolVersion

	if c.QuorumSet != nil {
		h, err := c.QuorumSet.Hash()
		if err != nil {
			return nil, err
		}
		oc.QuorumSetHash = h
	}

	return oc, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "overlay".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range logrus.AllLevels {
				if l <= c.logger.Level {
					pathMap[l] = c.LogFile
				}
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "overlay")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Overlay")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Overlay")
		} else {
			return filepath.Join(home, ".overlay")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
