package overlay

import "github.com/mosaicnetworks/overlay/src/wire"

const (
	// DefaultProtocolVersion is the protocol version spoken by this package.
	DefaultProtocolVersion = 5
	// DefaultListeningPort is the port nodes listen on unless configured
	// otherwise.
	DefaultListeningPort = 11625
	// DefaultMaxPeersPerMessage caps the number of addresses in a Peers
	// message.
	DefaultMaxPeersPerMessage = 50
)

// Config is what a Peer discloses about the local node in its Hello, and the
// range of remote protocol versions it accepts. One Config is shared by all
// the Peers of a node and must not be modified once they are created.
type Config struct {
	ProtocolVersion    int
	MinProtocolVersion int
	VersionStr         string
	ListeningPort      int
	NodeID             string
	QuorumSetHash      wire.Hash
	MaxPeersPerMessage int
}

// NewConfig returns a Config that only accepts DefaultProtocolVersion.
func NewConfig(versionStr string, listeningPort int, nodeID string) *Config {
	return &Config{
		ProtocolVersion:    DefaultProtocolVersion,
		MinProtocolVersion: DefaultProtocolVersion,
		VersionStr:         versionStr,
		ListeningPort:      listeningPort,
		NodeID:             nodeID,
		MaxPeersPerMessage: DefaultMaxPeersPerMessage,
	}
}

func (c *Config) acceptsVersion(v int) bool {
	return v >= c.MinProtocolVersion && v <= c.ProtocolVersion
}

func (c *Config) hello() *wire.HelloBody {
	return &wire.HelloBody{
		ProtocolVersion: c.ProtocolVersion,
		VersionStr:      c.VersionStr,
		ListeningPort:   c.ListeningPort,
		NodeID:          c.NodeID,
		QuorumSetHash:   c.QuorumSetHash,
	}
}
