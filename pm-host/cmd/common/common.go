// Package common implements common things for commands.
package common

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/puppetmaster-fpga/pm-host/common/errors"
	"github.com/puppetmaster-fpga/pm-host/common/logging"
)

const cfgConfigFile = "config"

var (
	// RootFlags has the flags that are common across all commands.
	RootFlags = flag.NewFlagSet("", flag.ContinueOnError)

	cfgFile string

	rootLog = logging.GetLogger("pm-host")
)

// Logger returns the command logger.
func Logger() *logging.Logger {
	return rootLog
}

// InitConfig initializes the config file, if one was specified.
func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			EarlyLogAndExit(err)
		}
	}
}

// Init initializes the common environment across all commands.
func Init() error {
	initFns := []func() error{
		initLogging,
	}

	for _, fn := range initFns {
		if err := fn(); err != nil {
			return err
		}
	}

	return nil
}

// EarlyLogAndExit writes the error to stderr and exits, for use before
// logging is initialized.
func EarlyLogAndExit(err error) {
	fmt.Fprintln(os.Stderr, err)
	ExitForError(err)
}

// ExitForError terminates the process with the exit code registered
// for the given error, or 1 if the error carries no code.
func ExitForError(err error) {
	_, code := errors.Code(err)
	if code == errors.CodeNoError {
		code = 1
	}
	os.Exit(int(code))
}

func init() {
	initLoggingFlags()

	RootFlags.StringVar(&cfgFile, cfgConfigFile, "", "config file")
	RootFlags.AddFlagSet(loggingFlags)
	_ = viper.BindPFlags(RootFlags)
}
