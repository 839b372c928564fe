package core

import (
	"log"
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
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration

		AccessTokenExpirationDelta  time.Duration
		RefreshTokenExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	EmailConfig struct {
		Provider       string // console (default) | sendgrid | mailgun
		SendgridAPIKey string
		MailgunDomain  string
		MailgunAPIKey  string
	}

	UploadsConfig struct {
		Provider string // local (default) | b2
		Dir      string
		BaseURL  string
		MaxFiles int
	}

	B2Config struct {
		AccountID string
		AppKey    string
		Bucket    string
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        []byte
		RefreshSecretKey []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		WorkDir          string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Uploads  UploadsConfig
		B2       B2Config
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration from the environment,
// falling back on `config/.env.<env>` then on defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "w#7y=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy-ne+57)enb$")
	v.SetDefault("refreshSecretKey", "h^$cegm2emy-ne+57)enb$w#7y=dz&uoxh2(h!x)#*c2(#yg4")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("accessTokenExpirationDelta", 24*time.Hour)
	v.SetDefault("refreshTokenExpirationDelta", 10*24*time.Hour)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "darasa")
	v.SetDefault("databaseUser", "darasa")
	v.SetDefault("databasePassword", "darasa")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("emailProvider", "console")
	v.SetDefault("uploadsProvider", "local")
	v.SetDefault("uploadsDir", "uploads")
	v.SetDefault("uploadsBaseURL", "/uploads")
	v.SetDefault("uploadsMaxFiles", 5)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	uploadsDir := v.GetString("uploadsDir")
	if !filepath.IsAbs(uploadsDir) {
		uploadsDir = filepath.Join(wd, uploadsDir)
	}

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        []byte(v.GetString("secretKey")),
		RefreshSecretKey: []byte(v.GetString("refreshSecretKey")),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                        v.GetString("serverHost"),
			Address:                     v.GetString("serverAddress"),
			DebugHost:                   v.GetString("serverDebugHost"),
			ShutdownTimeout:             v.GetDuration("serverShutdownTimeout"),
			AccessTokenExpirationDelta:  v.GetDuration("accessTokenExpirationDelta"),
			RefreshTokenExpirationDelta: v.GetDuration("refreshTokenExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Email: EmailConfig{
			Provider:       v.GetString("emailProvider"),
			SendgridAPIKey: v.GetString("sendgridAPIKey"),
			MailgunDomain:  v.GetString("mailgunDomain"),
			MailgunAPIKey:  v.GetString("mailgunAPIKey"),
		},
		Uploads: UploadsConfig{
			Provider: v.GetString("uploadsProvider"),
			Dir:      uploadsDir,
			BaseURL:  v.GetString("uploadsBaseURL"),
			MaxFiles: v.GetInt("uploadsMaxFiles"),
		},
		B2: B2Config{
			AccountID: v.GetString("b2AccountID"),
			AppKey:    v.GetString("b2AppKey"),
			Bucket:    v.GetString("b2Bucket"),
		},
	}
}
