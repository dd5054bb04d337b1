package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mosaicnetworks/overlay/src/engine"
)

//NewRunCmd returns the command that starts an overlay node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runOverlay,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runOverlay(cmd *cobra.Command, args []string) error {
	e := engine.NewEngine(&_config.Overlay)

	if err := e.Init(); err != nil {
		_config.Overlay.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go e.Run()

	<-sigCh
	_config.Overlay.Logger().Info("Shutting down")
	e.Shutdown()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Overlay.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Overlay.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Overlay.LogFile, "Also write the log to this file")
	cmd.Flags().String("moniker", _config.Overlay.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Overlay.BindAddr, "Listen IP:Port for overlay node")
	cmd.Flags().StringP("advertise", "a", _config.Overlay.AdvertiseAddr, "Advertise IP:Port for overlay node")
	cmd.Flags().DurationP("timeout", "t", _config.Overlay.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("handshake-timeout", _config.Overlay.HandshakeTimeout, "Time allowed to complete the handshake")
	cmd.Flags().Duration("connect-interval", _config.Overlay.ConnectInterval, "Time between outbound connection attempts")
	cmd.Flags().Int("max-connections", _config.Overlay.MaxConnections, "Max number of open connections")
	cmd.Flags().Int("target-peers", _config.Overlay.TargetPeers, "Number of outbound connections to maintain")
	cmd.Flags().Uint32("max-frame-size", _config.Overlay.MaxFrameSize, "Largest accepted frame in bytes")

	// Protocol
	cmd.Flags().Int("protocol-version", _config.Overlay.ProtocolVersion, "Overlay protocol version")
	cmd.Flags().Int("min-protocol-version", _config.Overlay.MinProtocolVersion, "Oldest accepted overlay protocol version")

	// Service
	cmd.Flags().Bool("no-service", _config.Overlay.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Overlay.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Overlay.Store, "Use badgerDB instead of in-mem peer directory")
	cmd.Flags().String("db", _config.Overlay.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.Overlay.CacheSize, "Number of quorum sets held in memory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Overlay.SetDataDir(_config.Overlay.DataDir)

	logFields := logrus.Fields{
		"overlay.DataDir":            _config.Overlay.DataDir,
		"overlay.BindAddr":           _config.Overlay.BindAddr,
		"overlay.AdvertiseAddr":      _config.Overlay.AdvertiseAddr,
		"overlay.ServiceAddr":        _config.Overlay.ServiceAddr,
		"overlay.NoService":          _config.Overlay.NoService,
		"overlay.Store":              _config.Overlay.Store,
		"overlay.LogLevel":           _config.Overlay.LogLevel,
		"overlay.Moniker":            _config.Overlay.Moniker,
		"overlay.ProtocolVersion":    _config.Overlay.ProtocolVersion,
		"overlay.MinProtocolVersion": _config.Overlay.MinProtocolVersion,
		"overlay.TCPTimeout":         _config.Overlay.TCPTimeout,
		"overlay.HandshakeTimeout":   _config.Overlay.HandshakeTimeout,
		"overlay.ConnectInterval":    _config.Overlay.ConnectInterval,
		"overlay.MaxConnections":     _config.Overlay.MaxConnections,
		"overlay.TargetPeers":        _config.Overlay.TargetPeers,
		"overlay.CacheSize":          _config.Overlay.CacheSize,
	}

	if _config.Overlay.Store {
		logFields["overlay.DatabaseDir"] = _config.Overlay.DatabaseDir
	}

	_config.Overlay.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/overlay.toml (.json, .yaml also work)
	viper.SetConfigName("overlay")               // name of config file (without extension)
	viper.AddConfigPath(_config.Overlay.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Overlay.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Overlay.Logger().Debugf("No config file found in: %s", _config.Overlay.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
