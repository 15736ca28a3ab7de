package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"invitetrack"`
}

// StoreConfig carries backend options as-is; each backend applies what it
// understands and ignores the rest.
type StoreConfig struct {
	Path        string `yaml:"path" env-default:"./database"`
	MaxSizeMb   int    `yaml:"max_size_mb" env-default:"20"`
	Encrypt     bool   `yaml:"encrypt" env-default:"false"`
	SecurityKey string `yaml:"security_key" env-default:""`
}

type PlatformConfig struct {
	BaseUrl string `yaml:"base_url" env-default:""`
	Token   string `yaml:"token" env-default:""`
}

type InvitesConfig struct {
	FakeThresholdDays int  `yaml:"fake_threshold_days" env-default:"14"`
	RefetchOnJoin     bool `yaml:"refetch_on_join" env-default:"true"`
	FetchTimeoutSec   int  `yaml:"fetch_timeout_sec" env-default:"5"`
}

type TelegramConfig struct {
	Enabled bool    `yaml:"enabled" env-default:"false"`
	ApiKey  string  `yaml:"api_key" env-default:""`
	ChatIds []int64 `yaml:"chat_ids"`
}

type ApiConfig struct {
	Token string `yaml:"token" env-default:""`
}

// BindingConfig attaches one script command to an outcome event
// (inviteJoin, inviteLeave, inviteError).
type BindingConfig struct {
	Event   string `yaml:"event"`
	Name    string `yaml:"name"`
	Channel string `yaml:"channel"`
	Code    string `yaml:"code"`
}

type Config struct {
	Listen   Listen          `yaml:"listen"`
	Mongo    MongoConfig     `yaml:"mongo"`
	Store    StoreConfig     `yaml:"store"`
	Platform PlatformConfig  `yaml:"platform"`
	Invites  InvitesConfig   `yaml:"invites"`
	Telegram TelegramConfig  `yaml:"telegram"`
	Api      ApiConfig       `yaml:"api"`
	Bindings []BindingConfig `yaml:"bindings"`
	Env      string          `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
