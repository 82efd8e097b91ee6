package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func (c *Config) GetLogLevel() log.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ConfigureLogging sends text logs to stdout and, when LogFile is set, also
// to a rotated file.
func ConfigureLogging(cfg *Config) error {
	log.SetLevel(cfg.GetLogLevel())
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if cfg.LogFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 30,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	log.AddHook(lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: rotator,
		log.FatalLevel: rotator,
		log.ErrorLevel: rotator,
		log.WarnLevel:  rotator,
		log.InfoLevel:  rotator,
		log.DebugLevel: rotator,
	}, &log.JSONFormatter{}))
	return nil
}
