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
	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Firebase FirebaseConfig
		Cron     CronConfig
		Cache    CacheConfig
		Mirror   MirrorConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		BodyLimit       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		AutoMigrate   bool
	}

	FirebaseConfig struct {
		ProjectID string
		CertsURL  string
	}

	CronConfig struct {
		Secret        string
		Header        string
		QueryParam    string
		TrustedHeader string
		DecaySchedule string // robfig/cron spec; empty disables the in-process schedule
	}

	CacheConfig struct {
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		PositiveTTL   time.Duration
		NegativeTTL   time.Duration
	}

	MirrorConfig struct {
		ProjectID       string
		CredentialsFile string
	}

	EmailConfig struct {
		SendgridApiKey   string
		DefaultFromEmail string
		FrontendBaseURL  string
		AdminEmails      []string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) IsProduction() bool {
	return c.Env == "PROD"
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Email.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.Email.DefaultFromEmail}
	}
	return *addr
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment keys are prefixed with the upper-cased env name, eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Theoremz Black")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.bodyLimit", "1M")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "theoremz")
	v.SetDefault("database.user", "theoremz")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.autoMigrate", env == "DEV")

	v.SetDefault("firebase.projectID", "")
	v.SetDefault("firebase.certsURL", "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com")

	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.header", "X-Cron-Secret")
	v.SetDefault("cron.queryParam", "secret")
	v.SetDefault("cron.trustedHeader", "X-Vercel-Cron")
	v.SetDefault("cron.decaySchedule", "")

	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)
	v.SetDefault("cache.positiveTTL", 10*time.Minute)
	v.SetDefault("cache.negativeTTL", 2*time.Minute)

	v.SetDefault("mirror.projectID", "")
	v.SetDefault("mirror.credentialsFile", "")

	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.defaultFromEmail", "Theoremz <noreply@theoremz.com>")
	v.SetDefault("email.frontendBaseURL", "http://localhost:3000")
	v.SetDefault("email.adminEmails", []string{})

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			BodyLimit:       v.GetString("server.bodyLimit"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
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
			AutoMigrate:   v.GetBool("database.autoMigrate"),
		},
		Firebase: FirebaseConfig{
			ProjectID: v.GetString("firebase.projectID"),
			CertsURL:  v.GetString("firebase.certsURL"),
		},
		Cron: CronConfig{
			Secret:        v.GetString("cron.secret"),
			Header:        v.GetString("cron.header"),
			QueryParam:    v.GetString("cron.queryParam"),
			TrustedHeader: v.GetString("cron.trustedHeader"),
			DecaySchedule: v.GetString("cron.decaySchedule"),
		},
		Cache: CacheConfig{
			RedisAddr:     v.GetString("cache.redisAddr"),
			RedisPassword: v.GetString("cache.redisPassword"),
			RedisDB:       v.GetInt("cache.redisDB"),
			PositiveTTL:   v.GetDuration("cache.positiveTTL"),
			NegativeTTL:   v.GetDuration("cache.negativeTTL"),
		},
		Mirror: MirrorConfig{
			ProjectID:       v.GetString("mirror.projectID"),
			CredentialsFile: v.GetString("mirror.credentialsFile"),
		},
		Email: EmailConfig{
			SendgridApiKey:   v.GetString("email.sendgridApiKey"),
			DefaultFromEmail: v.GetString("email.defaultFromEmail"),
			FrontendBaseURL:  v.GetString("email.frontendBaseURL"),
			AdminEmails:      cleanList(v.GetStringSlice("email.adminEmails")),
		},
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = CleanString(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
