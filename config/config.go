package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameRules      `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver selects the persistence implementation: "gorm" or "sql".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameRules 游戏规则配置，整局游戏期间不可变
type GameRules struct {
	MinPlayers        int `mapstructure:"min_players"`
	MaxPlayers        int `mapstructure:"max_players"`
	MaxRounds         int `mapstructure:"max_rounds"`
	MaxHandSize       int `mapstructure:"max_hand_size"`
	InitialHandSize   int `mapstructure:"initial_hand_size"`
	WitchDecayRounds  int `mapstructure:"witch_decay_rounds"`
	KillMagicPerNight int `mapstructure:"kill_magic_per_night"`

	// 每个阶段的时长（秒），0 表示该阶段不设倒计时
	MorningSeconds int `mapstructure:"morning_seconds"`
	DaySeconds     int `mapstructure:"day_seconds"`
	VotingSeconds  int `mapstructure:"voting_seconds"`
	NightSeconds   int `mapstructure:"night_seconds"`

	// CardPool 按卡牌类型名指定构建牌堆时的张数
	CardPool map[string]int `mapstructure:"card_pool"`
}

// PhaseDuration returns the configured timer for a phase id, 0 for untimed phases.
func (r GameRules) PhaseDuration(phaseID string) time.Duration {
	switch phaseID {
	case "morning":
		return time.Duration(r.MorningSeconds) * time.Second
	case "day":
		return time.Duration(r.DaySeconds) * time.Second
	case "voting":
		return time.Duration(r.VotingSeconds) * time.Second
	case "night":
		return time.Duration(r.NightSeconds) * time.Second
	}
	return 0
}

// DefaultGameRules 默认规则，房间未指定配置时使用
func DefaultGameRules() GameRules {
	return GameRules{
		MinPlayers:        4,
		MaxPlayers:        8,
		MaxRounds:         10,
		MaxHandSize:       4,
		InitialHandSize:   4,
		WitchDecayRounds:  2,
		KillMagicPerNight: 3,
		MorningSeconds:    15,
		DaySeconds:        120,
		VotingSeconds:     45,
		NightSeconds:      60,
		CardPool: map[string]int{
			"witch_killer": 1,
			"barrier":      8,
			"kill":         10,
			"detect":       8,
			"check":        5,
		},
	}
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if config.Game.MaxPlayers == 0 {
		config.Game = DefaultGameRules()
	}
	return
}
