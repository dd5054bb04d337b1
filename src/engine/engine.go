// Package engine assembles an overlay node from its configuration: key,
// peer directory, quorum sets, application context, transport, connection
// manager and HTTP service.
package engine

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/overlay/src/app"
	"github.com/mosaicnetworks/overlay/src/config"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	onet "github.com/mosaicnetworks/overlay/src/net"
	"github.com/mosaicnetworks/overlay/src/node"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/quorum"
	"github.com/mosaicnetworks/overlay/src/service"
	"github.com/mosaicnetworks/overlay/src/wire"
)

// Engine is the top-level object of an overlay node.
type Engine struct {
	Config     *config.Config
	Node       *node.Node
	Transport  *onet.TCPTransport
	Directory  peers.Directory
	QuorumSets *quorum.Cache
	App        *app.InmemApp
	Service    *service.Service

	logger *logrus.Entry
}

// NewEngine creates an Engine. Call Init before Run.
func NewEngine(conf *config.Config) *Engine {
	engine := &Engine{
		Config: conf,
		logger: conf.Logger(),
	}

	return engine
}

func (e *Engine) initKey() error {
	if e.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(e.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadOrGenerateKey()
		if err != nil {
			e.logger.WithError(err).Error("Cannot read or generate private key")
			return err
		}

		e.Config.Key = privKey
	}

	e.logger.WithField("id", e.Config.NodeID()).Debug("Node identity")

	return nil
}

func (e *Engine) initQuorumSets() error {
	// Without an explicit quorum set, the node trusts itself only
	if e.Config.QuorumSet == nil {
		e.Config.QuorumSet = &wire.QuorumSet{
			Threshold:  1,
			Validators: []string{e.Config.NodeID()},
		}
	}

	e.QuorumSets = quorum.NewCache(e.Config.CacheSize)

	h, err := e.QuorumSets.Pin(e.Config.QuorumSet)
	if err != nil {
		return err
	}

	e.logger.WithField("hash", h.String()).Debug("Local quorum set")

	return nil
}

func (e *Engine) initDirectory() error {
	if !e.Config.Store {
		e.Directory = peers.NewInmemDirectory()

		e.logger.Debug("created new in-mem directory")
	} else {
		e.logger.WithField("path", e.Config.DatabaseDir).Debug("Attempting to load or create database")

		dir, err := peers.NewBadgerDirectory(e.Config.DatabaseDir)
		if err != nil {
			return err
		}

		e.logger.WithField("records", dir.Len()).Debug("loaded badger directory")

		e.Directory = dir
	}

	seeds, err := peers.NewJSONPeers(e.Config.DataDir).Records()
	if err != nil {
		return fmt.Errorf("reading peers.json: %s", err)
	}

	added, err := e.Directory.Merge(seeds)
	if err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"seeds": len(seeds),
		"added": added,
	}).Debug("Seeded directory")

	return nil
}

func (e *Engine) initApp() error {
	e.App = app.NewInmemApp(e.QuorumSets, e.Directory, e.logger.WithField("component", "app"))
	return nil
}

func (e *Engine) initTransport() error {
	stream, err := onet.NewTCPStreamLayer(e.Config.BindAddr, e.Config.AdvertiseAddr)
	if err != nil {
		return err
	}

	// The disclosed port is the one actually bound, which matters for ":0"
	if e.Config.AdvertiseAddr == "" {
		e.Config.AdvertiseAddr = stream.AdvertiseAddr()
	}

	oconf, err := e.Config.OverlayConfig()
	if err != nil {
		stream.Close()
		return err
	}

	e.Transport = onet.NewStreamTransport(
		stream,
		oconf,
		e.App,
		e.Config.TCPTimeout,
		e.Config.MaxFrameSize,
		e.logger.WithField("component", "transport"),
	)

	return nil
}

func (e *Engine) initNode() error {
	e.Node = node.NewNode(e.Config, e.App, e.Transport)

	if err := e.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (e *Engine) initService() error {
	if !e.Config.NoService {
		e.Service = service.NewService(e.Config.ServiceAddr, e.Node, e.logger.WithField("component", "service"))
	}
	return nil
}

// Init builds every component of the node.
func (e *Engine) Init() error {
	if err := e.initKey(); err != nil {
		return err
	}

	if err := e.initQuorumSets(); err != nil {
		return err
	}

	if err := e.initDirectory(); err != nil {
		return err
	}

	if err := e.initApp(); err != nil {
		return err
	}

	if err := e.initTransport(); err != nil {
		return err
	}

	if err := e.initNode(); err != nil {
		return err
	}

	if err := e.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service, if any, and runs the node. It blocks until
// Shutdown.
func (e *Engine) Run() {
	if e.Service != nil {
		go e.Service.Serve()
	}

	e.Node.Run()
}

// Shutdown stops the node, waits for its connections to be torn down, then
// closes the directory.
func (e *Engine) Shutdown() {
	if e.Node != nil {
		e.Node.Shutdown()
	}

	if c, ok := e.Directory.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.WithError(err).Error("Closing directory")
		}
	}
}
