package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gamegineer/tablenet/src/config"
	"github.com/gamegineer/tablenet/src/gametable"
)

//NewHostCmd returns the command that opens a table
func NewHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "host",
		Short:   "Host a table",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(gametable.Host)
		},
	}
	addCommonFlags(cmd)
	AddHostFlags(cmd)
	return cmd
}

//NewJoinCmd returns the command that joins a table
func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "join",
		Short:   "Join a table",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(gametable.Join)
		},
	}
	addCommonFlags(cmd)
	AddJoinFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSession(mode gametable.Mode) error {
	logger := _config.Table.Logger()

	engine := gametable.NewGameTable(&_config.Table, mode)

	if err := engine.Init(); err != nil {
		logger.Error("Cannot initialize engine:", err)
		return err
	}
	defer engine.Shutdown()

	con := newConsole(engine.Node, engine.Table, os.Stdin, os.Stdout)
	engine.SetListener(con)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		logger.Error("Cannot start session:", err)
		return err
	}

	if _config.NoConsole {
		return con.wait(ctx)
	}
	return con.run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Table.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Table.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Table.LogFile, "Also write the log, in JSON, to this file")

	// Player
	cmd.Flags().StringP("name", "n", _config.Table.PlayerName, "Player name")
	cmd.Flags().String("password", _config.Table.Password, "Table password")

	// Network
	cmd.Flags().Bool("websocket", _config.Table.WebSocket, "Use WebSocket instead of plain TCP")
	cmd.Flags().DurationP("timeout", "t", _config.Table.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("request-timeout", _config.Table.RequestTimeout, "Close connections whose peer leaves a request unanswered (0 disables)")
	cmd.Flags().Int("send-queue", _config.Table.SendQueueSize, "Outbound messages buffered per connection")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Table.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Table.NoService, "Disable HTTP service")

	// Console
	cmd.Flags().Bool("no-console", _config.NoConsole, "Do not read commands from the standard input")
}

//AddHostFlags adds flags to the host command
func AddHostFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("listen", "l", _config.Table.BindAddr, "Listen IP:Port for the table")
	cmd.Flags().StringP("advertise", "a", _config.Table.AdvertiseAddr, "Advertise IP:Port for the table")

	// Store
	cmd.Flags().Bool("store", _config.Table.Store, "Save the table in badgerDB and reload it on start")
	cmd.Flags().String("db", _config.Table.DatabaseDir, "Dabatabase directory")
}

//AddJoinFlags adds flags to the join command
func AddJoinFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("table", "j", _config.Table.TableAddr, "IP:Port of the table to join")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Table.SetDataDir(_config.Table.DataDir)

	logFields := logrus.Fields{
		"table.DataDir":        _config.Table.DataDir,
		"table.PlayerName":     _config.Table.PlayerName,
		"table.BindAddr":       _config.Table.BindAddr,
		"table.AdvertiseAddr":  _config.Table.AdvertiseAddr,
		"table.TableAddr":      _config.Table.TableAddr,
		"table.WebSocket":      _config.Table.WebSocket,
		"table.ServiceAddr":    _config.Table.ServiceAddr,
		"table.NoService":      _config.Table.NoService,
		"table.Store":          _config.Table.Store,
		"table.LogLevel":       _config.Table.LogLevel,
		"table.LogFile":        _config.Table.LogFile,
		"table.TCPTimeout":     _config.Table.TCPTimeout,
		"table.RequestTimeout": _config.Table.RequestTimeout,
		"table.SendQueueSize":  _config.Table.SendQueueSize,
		"NoConsole":            _config.NoConsole,
	}

	if _config.Table.Store {
		logFields["table.DatabaseDir"] = _config.Table.DatabaseDir
	}

	_config.Table.Logger().WithFields(logFields).Debug("RUN")

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

	// look for config file in [datadir]/gametable.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.Table.DataDir)    // search root directory

	// If a config file is found, read it in. The logger is only built after
	// the second unmarshal, so that the file can set the log options.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	if file := viper.ConfigFileUsed(); file != "" {
		_config.Table.Logger().Debugf("Using config file: %s", file)
	} else {
		_config.Table.Logger().Debugf("No config file found in: %s", _config.Table.DataDir)
	}

	return nil
}
