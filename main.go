// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jkoelker/go-imap-watch/config"
	"github.com/jkoelker/go-imap-watch/filterchain"
	"github.com/jkoelker/go-imap-watch/filters"
	"github.com/jkoelker/go-imap-watch/imapconnection"
	"github.com/jkoelker/go-imap-watch/log"
	"github.com/jkoelker/go-imap-watch/persistence"
	"github.com/jkoelker/go-imap-watch/pipeline"
	"github.com/jkoelker/go-imap-watch/watcher"

	"github.com/sirupsen/logrus"
)

func main() {
	log.InitLogging("debug")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig("config.toml")
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not open cursor database")
	}

	entries, err := filters.Build(conf.Filters)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not build filter chain")
	}
	if len(entries) == 0 {
		logger.Warn("No filters configured, mails will only be detected and logged")
	}
	chain := filterchain.New(entries...)

	imapConn, err := imapconnection.NewImapConnection(conf.ImapHost, conf.User, conf.Password)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to imap server")
	}

	if conf.DryRun {
		logger.Warn("Dry-run is enabled, filter actions will be logged but not executed")
	}
	sessions := imapconnection.NewFactory(conf.ImapHost, conf.User, conf.Password, conf.DryRun)

	pipe := pipeline.NewPipeline(
		sessions,
		chain,
		conf.Folder,
		conf.Workers,
		time.Duration(conf.PollIntervalSeconds)*time.Second,
	)

	configs := []watcher.ConfigFunc{
		watcher.Folder(conf.Folder),
		watcher.IdleTimeout(time.Duration(conf.IdleTimeoutSeconds) * time.Second),
	}
	if conf.Catchup {
		configs = append(configs, watcher.Catchup())
	}

	w, err := watcher.NewWatcher(imapConn, p, pipe, configs...)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not build watcher")
	}

	watchCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The pipeline lives on its own context: when the watch loop ends,
	// first stop producing, then signal the workers, join them and only
	// then release the sessions.
	pipeCtx, stopPipeline := context.WithCancel(context.Background())
	pipe.Start(pipeCtx)

	logger.WithFields(logrus.Fields{"folder": conf.Folder, "workers": conf.Workers, "catchup": conf.Catchup}).Info("Watching mailbox")
	watchErr := w.Run(watchCtx)
	stop()

	logger.Debug("Watch loop ended, draining pipeline")
	stopPipeline()
	pipe.Join()

	err = imapConn.Close()
	if err != nil {
		logger.WithField("error", err).Warn("Could not close imap connection")
	}

	err = p.Close()
	if err != nil {
		logger.WithField("error", err).Warn("Could not close cursor database")
	}

	if watchErr != nil {
		logger.WithField("error", watchErr).Fatal("Watcher failed")
	}

	logger.Info("Shut down cleanly")
}
