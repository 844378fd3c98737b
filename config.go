// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/internal/cfgutil"
	"github.com/btcsuite/ethwallet/keycrypt"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "ethwallet.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "ethwallet.log"
	defaultBackend        = "bolt"
	defaultKDF            = "scrypt"
	defaultDeviceTimeout  = 2 * time.Minute

	boltDbName        = "accounts.db"
	sqliteDbName      = "accounts.sqlite"
	selectionFilename = "selected"
)

var (
	ethwalletHomeDir  = btcutil.AppDataDir("ethwallet", false)
	defaultConfigFile = filepath.Join(ethwalletHomeDir, defaultConfigFilename)
	defaultDataDir    = ethwalletHomeDir
	defaultLogDir     = filepath.Join(ethwalletHomeDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile  string                  `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string                  `short:"b" long:"datadir" description:"Directory to store the account database"`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir      *cfgutil.ExplicitString `long:"logdir" description:"Directory to log output"`

	// Account storage
	Backend string `long:"backend" description:"Account database backend" choice:"bolt" choice:"sqlite" choice:"postgres"`
	DSN     string `long:"dsn" default-mask:"-" description:"PostgreSQL connection string, required with --backend=postgres"`

	// Key options
	DerivationPath string `long:"derivationpath" description:"Derivation path of the HD root"`
	KDF            string `long:"kdf" description:"Key derivation function of new keystores" choice:"scrypt" choice:"pbkdf2"`
	ScryptN        int    `long:"scryptn" description:"Scrypt CPU/memory cost"`
	ScryptR        int    `long:"scryptr" description:"Scrypt block size"`
	ScryptP        int    `long:"scryptp" description:"Scrypt parallelization"`
	PBKDF2C        int    `long:"pbkdf2c" description:"PBKDF2 iteration count"`
	LightKDF       bool   `long:"lightkdf" description:"Use fast, weak scrypt parameters for new keystores"`

	// Hardware signers
	DeviceTimeout time.Duration `long:"devicetimeout" description:"Time to wait for a hardware signer to answer"`
	SimDevice     string        `long:"simdevice" description:"Simulate Trezor and Ledger signers holding the keys of the mnemonic in this file (testing only)"`

	path   hdkeys.Path
	params keycrypt.Params
}

func defaultConfig() config {
	params := keycrypt.DefaultParams
	return config{
		ConfigFile:     defaultConfigFile,
		DataDir:        defaultDataDir,
		DebugLevel:     defaultLogLevel,
		LogDir:         cfgutil.NewExplicitString(defaultLogDir),
		Backend:        defaultBackend,
		DerivationPath: hdkeys.DefaultPath,
		KDF:            defaultKDF,
		ScryptN:        params.N,
		ScryptR:        params.R,
		ScryptP:        params.P,
		PBKDF2C:        262144,
		DeviceTimeout:  defaultDeviceTimeout,
	}
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(ethwalletHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// loadConfig initializes the config from defaults, the config file and
// command line options and returns the parser that runs the chosen command.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//
// Command line options are applied when the returned parser runs, so they
// always take precedence over the config file.  The command itself finishes
// the configuration by calling finishConfig.
func loadConfig() (*flags.Parser, error) {
	c := defaultConfig()
	cfg = &c

	// A config file in the current directory takes precedence.
	exists, err := cfgutil.FileExists(defaultConfigFilename)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	if exists {
		cfg.ConfigFile = defaultConfigFilename
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Commands and help are left
	// to the main parser.
	preCfg := struct {
		ConfigFile  string `short:"C" long:"configfile"`
		ShowVersion bool   `short:"V" long:"version"`
	}{ConfigFile: cfg.ConfigFile}
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	parser := flags.NewParser(cfg, flags.Default)
	if err := addCommands(parser); err != nil {
		return nil, err
	}

	// Load additional config from file.  A missing file is not an error.
	err = flags.NewIniParser(parser).ParseFile(
		cleanAndExpandPath(preCfg.ConfigFile),
	)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, err
		}
	}

	return parser, nil
}

// finishConfig validates the parsed options, initializes logging and derives
// the values commands use.  It must run before any command touches the
// account database.
func finishConfig() error {
	funcName := "finishConfig"

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)

	// The log directory follows the data directory unless it was set.
	cfg.LogDir.Default(filepath.Join(cfg.DataDir, defaultLogDirname))
	cfg.LogDir.Value = cleanAndExpandPath(cfg.LogDir.Value)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir.Value, defaultLogFilename))
	setLogLevels(defaultLogLevel)

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	path, err := hdkeys.ParsePath(cfg.DerivationPath)
	if err != nil {
		err := fmt.Errorf("%s: invalid derivation path: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	cfg.path = path

	switch {
	case cfg.LightKDF:
		cfg.params = keycrypt.LightParams
	case cfg.KDF == keycrypt.KDFPBKDF2:
		cfg.params = keycrypt.Params{
			KDF:   keycrypt.KDFPBKDF2,
			C:     cfg.PBKDF2C,
			DKLen: 32,
		}
	default:
		cfg.params = keycrypt.Params{
			KDF:   keycrypt.KDFScrypt,
			N:     cfg.ScryptN,
			R:     cfg.ScryptR,
			P:     cfg.ScryptP,
			DKLen: 32,
		}
	}
	if err := cfg.params.Validate(); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	if cfg.Backend == "postgres" && cfg.DSN == "" {
		err := fmt.Errorf("%s: the postgres backend requires --dsn",
			funcName)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if cfg.DeviceTimeout <= 0 {
		err := fmt.Errorf("%s: --devicetimeout must be positive",
			funcName)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if cfg.SimDevice != "" {
		cfg.SimDevice = cleanAndExpandPath(cfg.SimDevice)
		log.Warnf("Simulating hardware signers from %s", cfg.SimDevice)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		err := fmt.Errorf("%s: failed to create data directory: %v",
			funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	return nil
}
