// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the ufobeep service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wneessen/ufobeep/internal/config"
	"github.com/wneessen/ufobeep/internal/i18n"
	"github.com/wneessen/ufobeep/internal/logger"
	"github.com/wneessen/ufobeep/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.NewLogger(slog.LevelError)

	confPath := flag.String("config", "", "path to the config file")
	report := flag.String("report", "", "upload the given photo as a new sighting and exit")
	userFlag := flag.String("flag", "", "country flag emoji attached to the reported sighting")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ufobeep %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	conf, err := loadConfig(*confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	log = logger.NewLogger(conf.LogLevel)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(conf, log, t)
	if err != nil {
		log.Error("failed to initialize ufobeep service", logger.Err(err))
		os.Exit(1)
	}

	if *report != "" {
		_, err = serv.Report(ctx, *report, *userFlag)
		fmt.Println(serv.ReportMessage(err))
		if err != nil {
			log.Error("failed to report sighting", logger.Err(err))
			os.Exit(1)
		}
		return
	}

	// SIGUSR1 dismisses the compass, SIGUSR2 logs the current state
	sigChan := make(chan os.Signal, 1)
	serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer serv.SignalSrc.Stop(sigChan)
		serv.HandleSignals(ctx, sigChan)
	}()

	// Start the service loop
	log.Info("starting ufobeep service", slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date),
		slog.String("device_id", conf.Server.DeviceID))
	if err = serv.Run(ctx); err != nil {
		log.Error("ufobeep service failed", logger.Err(err))
		os.Exit(1)
	}
	log.Info("shutting down ufobeep service")
}

// loadConfig reads the config file given on the command line, the one in the default location,
// or falls back to the defaults and the environment.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "ufobeep", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
