package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
)

// Logger оборачивает logrus с настройкой из конфигурации.
type Logger struct {
	*logrus.Logger
}

// New создает логгер с уровнем, форматом и выводом из конфигурации.
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.SetOutput(os.Stdout)
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using stdout")
		} else {
			log.SetOutput(file)
		}
	}

	return &Logger{Logger: log}
}
