package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgcfg "github.com/intellicog/records/pkg/config"
)

const EnvProduction = "production"

type Config struct {
	Environment   string
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	LogLevel      string
	CORSOrigins   []string

	// TrustedProxies are the networks whose X-Forwarded-For is believed.
	// Empty means the client ip is the socket peer.
	TrustedProxies []*net.IPNet

	JWTSecret     []byte
	RefreshSecret []byte

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	RecoveryTTL  time.Duration
	ResetCodeTTL time.Duration

	Mail  MailConfig
	S3    S3Config
	Kafka KafkaConfig
	ES    ESConfig
}

type MailConfig struct {
	Sender   string
	Password string
	Host     string
	Port     int
	Support  string
}

type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads .env when present, then the process environment. The error lists
// every problem found: missing or shared production secrets and bad
// TRUSTED_PROXIES entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("notice: .env not loaded: %v", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	environment := pkgcfg.EnvDefault("ENVIRONMENT", "development")
	sender := pkgcfg.EnvDefault("EMAIL_SENDER", "")

	jwtSecret := pkgcfg.EnvDefault("JWT_SECRET", "secret")
	refreshSecret := pkgcfg.EnvDefault("REFRESH_SECRET", "refresh")
	var missing pkgcfg.Missing
	if environment == EnvProduction {
		jwtSecret = missing.Require("JWT_SECRET")
		refreshSecret = missing.Require("REFRESH_SECRET")
	}
	proxies, proxyErr := parseCIDRs(pkgcfg.CSV(pkgcfg.EnvDefault("TRUSTED_PROXIES", "")))

	cfg := Config{
		Environment:    environment,
		HTTPAddr:       pkgcfg.EnvDefault("HTTP_ADDR", ":8080"),
		PublicBaseURL:  pkgcfg.EnvDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:    pkgcfg.EnvDefault("DATABASE_URL", databaseURLFromParts()),
		LogLevel:       pkgcfg.EnvDefault("LOG_LEVEL", "info"),
		CORSOrigins:    pkgcfg.CSV(pkgcfg.EnvDefault("CORS_ORIGINS", "*")),
		TrustedProxies: proxies,

		JWTSecret:     []byte(jwtSecret),
		RefreshSecret: []byte(refreshSecret),

		AccessTTL:    pkgcfg.EnvDurationDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30, time.Minute),
		RefreshTTL:   pkgcfg.EnvDurationDefault("REFRESH_TOKEN_EXPIRE_HOURS", 3, time.Hour),
		RecoveryTTL:  pkgcfg.EnvDurationDefault("RECOVERY_TOKEN_EXPIRE_MINUTES", 10, time.Minute),
		ResetCodeTTL: pkgcfg.EnvDurationDefault("PASSWORD_RESET_CODE_EXPIRE_MINUTES", 15, time.Minute),

		Mail: MailConfig{
			Sender:   sender,
			Password: pkgcfg.EnvDefault("EMAIL_PASSWORD", ""),
			Host:     pkgcfg.EnvDefault("EMAIL_HOST", "smtp.gmail.com"),
			Port:     pkgcfg.EnvIntDefault("EMAIL_PORT", 587),
			Support:  pkgcfg.EnvDefault("SUPPORT_EMAIL", sender),
		},
		S3: S3Config{
			Bucket:          pkgcfg.EnvDefault("S3_BUCKET_NAME", "intellicog-bucket"),
			Region:          pkgcfg.EnvDefault("S3_REGION_NAME", "us-west-2"),
			AccessKeyID:     pkgcfg.EnvDefault("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: pkgcfg.EnvDefault("S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        pkgcfg.EnvDefault("S3_ENDPOINT", ""),
		},
		Kafka: KafkaConfig{
			Brokers: pkgcfg.CSV(pkgcfg.EnvDefault("KAFKA_BROKERS", "")),
			Topic:   pkgcfg.EnvDefault("KAFKA_TOPIC", "records_events"),
		},
		ES: ESConfig{
			URL:      pkgcfg.EnvDefault("ES_URL", ""),
			User:     pkgcfg.EnvDefault("ES_USER", ""),
			Password: pkgcfg.EnvDefault("ES_PASSWORD", ""),
			Index:    pkgcfg.EnvDefault("ES_INDEX", "patients"),
		},
	}

	errs := []error{missing.Err(), proxyErr}
	if cfg.IsProduction() && jwtSecret != "" && jwtSecret == refreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and REFRESH_SECRET must differ"))
	}
	return cfg, errors.Join(errs...)
}

// parseCIDRs accepts CIDR ranges and bare addresses (taken as a single host).
func parseCIDRs(values []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(values))
	var bad []string
	for _, v := range values {
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				bad = append(bad, v)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			bad = append(bad, v)
			continue
		}
		out = append(out, n)
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("invalid TRUSTED_PROXIES entries: %s", strings.Join(bad, ", "))
	}
	return out, nil
}

func databaseURLFromParts() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pkgcfg.EnvDefault("DB_USER", "myuser"), pkgcfg.EnvDefault("DB_PASSWORD", "mypassword")),
		Host:     fmt.Sprintf("%s:%s", pkgcfg.EnvDefault("DB_HOST", "localhost"), pkgcfg.EnvDefault("DB_PORT", "5432")),
		Path:     "/" + pkgcfg.EnvDefault("DB_NAME", "mydatabase"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
