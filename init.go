package adaptrisk

import (
	"os"
	"strconv"

	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/logger/zerolog"
)

// DefaultLog is the logger used when no custom logger is configured
var DefaultLog logger.Logger

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
)

// Environment variable names
const (
	envLogLevel      = "ADAPTRISK_LOG_LEVEL"
	envLogTimeFormat = "ADAPTRISK_LOG_TIME_FORMAT"
	envLogColor      = "ADAPTRISK_LOG_COLOR"
)

func init() {
	log, err := initLogger()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// initLogger creates the default logger configured from environment
// variables
func initLogger() (logger.Logger, error) {
	logLevel := getEnvWithDefault(envLogLevel, defaultLogLevel)
	logTimeFormat := getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat)

	logColored, err := strconv.ParseBool(getEnvWithDefault(envLogColor, defaultLogColored))
	if err != nil {
		return nil, err
	}

	return zerolog.NewZerolog(logLevel, logTimeFormat, logColored)
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
