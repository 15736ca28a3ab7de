package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"invitetrack/impl/core"
	"invitetrack/internal/bridge"
	"invitetrack/internal/config"
	"invitetrack/internal/counters"
	"invitetrack/internal/database"
	"invitetrack/internal/events"
	"invitetrack/internal/http-server/api"
	"invitetrack/internal/invites"
	"invitetrack/internal/notify"
	"invitetrack/internal/platform"
	"invitetrack/lib/logger"
	"invitetrack/lib/sl"
)

const logFileName = "invitetrack.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	log.Info("starting invitetrack", slog.String("config", *configPath), slog.String("env", conf.Env))

	var db counters.KeyValue
	if mongo := database.NewMongoClient(conf); mongo != nil {
		db = mongo
	} else {
		log.Warn("mongo disabled, using in-memory store")
		db = database.NewMemory()
	}

	router := events.NewRouter(log)

	if conf.Telegram.Enabled {
		tg, err := notify.NewTelegram(conf.Telegram.ApiKey, conf.Telegram.ChatIds, log)
		if err != nil {
			log.Error("telegram notifier", sl.Err(err))
		} else {
			router.Subscribe(events.KindError, tg.HandleEvent)
		}
	}

	gateway := platform.NewClient(conf.Platform, log)
	store := counters.New(db, log)
	mgr := invites.New(gateway, store, router, log, invites.Options{
		FakeThreshold: time.Duration(conf.Invites.FakeThresholdDays) * 24 * time.Hour,
		RefetchOnJoin: conf.Invites.RefetchOnJoin,
		FetchTimeout:  time.Duration(conf.Invites.FetchTimeoutSec) * time.Second,
	})

	handler := core.New(conf.Api.Token, log)
	handler.SetInviteManager(mgr)

	scripts := bridge.New(bridge.NewLuaInterpreter(), mgr, log)
	for _, b := range conf.Bindings {
		scripts.Bind(events.Kind(b.Event), bridge.Command{
			Name:    b.Name,
			Channel: b.Channel,
			Code:    b.Code,
		})
	}
	scripts.Attach(router)

	if err := mgr.Connect(context.Background()); err != nil {
		log.Error("invite manager connect", sl.Err(err))
		os.Exit(1)
	}

	if err := api.New(conf, log, handler); err != nil {
		log.Error("api server", sl.Err(err))
		os.Exit(1)
	}
}
