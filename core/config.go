package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                       string
		Address                    string
		DebugHost                  string
		ShutdownTimeout            time.Duration
		JWTExpirationDelta         time.Duration
		JWTRememberExpirationDelta time.Duration
		JWTRefreshExpirationDelta  time.Duration
		DisableReqLogs             bool
		AllowOrigins               []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	FixturesConfig struct {
		Dir   string // empty: embedded fixtures
		Watch bool
	}

	AttendanceConfig struct {
		SessionDuration    time.Duration
		MaxSessionDuration time.Duration
		QRRotationInterval time.Duration
		QRSize             int
		SessionRetention   time.Duration
		FreePeriodMinGap   time.Duration
	}

	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmailAddr      string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		WorkDir                   string

		Server     ServerConfig
		Database   DatabaseConfig
		Fixtures   FixturesConfig
		Attendance AttendanceConfig
	}
)

// Address returns the "host:port" of the database server.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmailAddr}
}

// NewConfig reads the configuration from defaults, `config/.env.<env>`, `config/classcue.yaml`
// and the environment (prefixed with the upper-cased env name, eg. PROD_SECRETKEY).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "ClassCue")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k9#2t@vq)1ln$5z&rw8m!o(dr%x0y^c4e7hj+bu=fa3s6gp")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.jwtRememberExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.allowOrigins", []string{"*"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "classcue")
	v.SetDefault("database.user", "classcue")
	v.SetDefault("database.password", "classcue")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("fixtures.dir", "")
	v.SetDefault("fixtures.watch", false)

	v.SetDefault("attendance.sessionDuration", 10*time.Minute)
	v.SetDefault("attendance.maxSessionDuration", time.Hour)
	v.SetDefault("attendance.qrRotationInterval", 30*time.Second)
	v.SetDefault("attendance.qrSize", 256)
	v.SetDefault("attendance.sessionRetention", 12*time.Hour)
	v.SetDefault("attendance.freePeriodMinGap", 15*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// optional config file
	v.SetConfigName("classcue")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(wd, "config"))
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("config.ReadInConfig: %v", err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmailAddr:      v.GetString("defaultFromEmail"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		WorkDir:                   wd,
		Server: ServerConfig{
			Host:                       v.GetString("server.host"),
			Address:                    v.GetString("server.address"),
			DebugHost:                  v.GetString("server.debugHost"),
			ShutdownTimeout:            v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:         v.GetDuration("server.jwtExpirationDelta"),
			JWTRememberExpirationDelta: v.GetDuration("server.jwtRememberExpirationDelta"),
			JWTRefreshExpirationDelta:  v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:             v.GetBool("server.disableReqLogs"),
			AllowOrigins:               v.GetStringSlice("server.allowOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Fixtures: FixturesConfig{
			Dir:   v.GetString("fixtures.dir"),
			Watch: v.GetBool("fixtures.watch"),
		},
		Attendance: AttendanceConfig{
			SessionDuration:    v.GetDuration("attendance.sessionDuration"),
			MaxSessionDuration: v.GetDuration("attendance.maxSessionDuration"),
			QRRotationInterval: v.GetDuration("attendance.qrRotationInterval"),
			QRSize:             v.GetInt("attendance.qrSize"),
			SessionRetention:   v.GetDuration("attendance.sessionRetention"),
			FreePeriodMinGap:   v.GetDuration("attendance.freePeriodMinGap"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: sqlite in memory, no request logs.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "ClassCue",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:5173",
		DefaultFromEmailAddr:      "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:                       "localhost",
			ShutdownTimeout:            time.Second,
			JWTExpirationDelta:         time.Hour,
			JWTRememberExpirationDelta: 24 * time.Hour,
			JWTRefreshExpirationDelta:  4 * time.Hour,
			DisableReqLogs:             true,
			AllowOrigins:               []string{"*"},
		},
		Database: DatabaseConfig{Engine: "sqlite", Name: ":memory:"},
		Attendance: AttendanceConfig{
			SessionDuration:    10 * time.Minute,
			MaxSessionDuration: time.Hour,
			QRRotationInterval: 30 * time.Second,
			QRSize:             128,
			SessionRetention:   time.Hour,
			FreePeriodMinGap:   15 * time.Minute,
		},
	}
}
