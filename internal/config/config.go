package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// ErrConfiguration — конфигурация неполна или некорректна; сервер не стартует.
var ErrConfiguration = errors.New("invalid configuration")

// DefaultAllowedNetworks — localhost и частные диапазоны локальной сети.
var DefaultAllowedNetworks = []string{
	"127.0.0.1",
	"::1",
	"192.168.0.0/16",
	"10.0.0.0/8",
	"172.16.0.0/12",
}

type Config struct {
	// Chain / condition
	RPCProvider     string `env:"RPC_PROVIDER"`
	ChainID         uint64 `env:"CHAIN_ID"`
	ContractAddress string `env:"CONTRACT_ADDRESS"`
	TacoDomain      string `env:"TACO_DOMAIN"`
	PorterURL       string `env:"PORTER_URL"`

	// Keystore
	WalletPath     string `env:"WALLET_PATH"`
	WalletPassword string `env:"WALLET_PASSWORD"`

	// Storage
	HomeUUID         string `env:"HOME_UUID"`
	StorageBackend   string `env:"STORAGE_BACKEND"`
	PinataJWT        string `env:"PINATA_JWT_KEY"`
	PinataAPIURL     string `env:"PINATA_API_URL"`
	PinataGatewayURL string `env:"PINATA_GATEWAY_URL"`
	DatabaseDSN      string `env:"DATABASE_URI"`

	// Server
	BaseURL         string        `env:"BASE_URL"`
	EnableHTTPS     bool          `env:"ENABLE_HTTPS"`
	AllowedNetworks []string      `env:"ALLOWED_NETWORKS" envSeparator:","`
	ObserverSecret  string        `env:"OBSERVER_SECRET"`
	StepTimeout     time.Duration `env:"STEP_TIMEOUT"`
	Redact          bool          `env:"REDACT_FIELDS"`
	LogJSON         bool          `env:"LOG_JSON"`

	// Feed relay
	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT"`

	// Client-side settings
	ServerURL     string `env:"-"`
	WeatherAPIKey string `env:"OPENWEATHER_API_KEY"`
	Version       bool   `env:"-"` // show client version and exit (flag only)
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags перекрывают значения из env, если заданы явно
	allow := strings.Join(cfg.AllowedNetworks, ",")
	flag.StringVar(&cfg.RPCProvider, "rpc", cfg.RPCProvider, "blockchain JSON-RPC endpoint")
	flag.Uint64Var(&cfg.ChainID, "chain", cfg.ChainID, "chain id of the access condition")
	flag.StringVar(&cfg.ContractAddress, "contract", cfg.ContractAddress, "subscription contract address")
	flag.StringVar(&cfg.TacoDomain, "domain", cfg.TacoDomain, "threshold network domain")
	flag.StringVar(&cfg.PorterURL, "porter", cfg.PorterURL, "threshold network porter URL")
	flag.StringVar(&cfg.WalletPath, "wallet", cfg.WalletPath, "path to the encrypted keystore file")
	flag.StringVar(&cfg.WalletPassword, "wallet-password", cfg.WalletPassword, "keystore password")
	flag.StringVar(&cfg.HomeUUID, "home", cfg.HomeUUID, "owner id recorded in storage metadata")
	flag.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "storage backend: pinata or local")
	flag.StringVar(&cfg.PinataJWT, "pinata-jwt", cfg.PinataJWT, "Pinata JWT")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "DB DSN for local storage (postgres URL or sqlite path)")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "listen address (server) or server address (client), host:port")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "client: use https scheme for BaseURL")
	flag.StringVar(&allow, "allow", allow, "comma separated IPs/CIDRs allowed to reach the server")
	flag.StringVar(&cfg.ObserverSecret, "observer-secret", cfg.ObserverSecret, "HS256 secret for observer tokens")
	flag.DurationVar(&cfg.StepTimeout, "step-timeout", cfg.StepTimeout, "timeout for each external call")
	flag.BoolVar(&cfg.Redact, "redact", cfg.Redact, "strip plaintext fields from log and broadcast")
	flag.StringVar(&cfg.NATSURL, "nats", cfg.NATSURL, "NATS URL to mirror the feed to")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	cfg.AllowedNetworks = splitList(allow)

	// Defaults
	if cfg.TacoDomain == "" {
		cfg.TacoDomain = "tapir"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "pinata"
	}
	if len(cfg.AllowedNetworks) == 0 {
		cfg.AllowedNetworks = append([]string(nil), DefaultAllowedNetworks...)
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 15 * time.Second
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = "sensorhub.readings"
	}
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "0.0.0.0:3000"
	}

	client := strings.Replace(cfg.BaseURL, "0.0.0.0", "localhost", 1)
	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + client
	} else {
		cfg.ServerURL = "http://" + client
	}

	return cfg
}

// Validate проверяет настройки сервера. Ошибка оборачивает ErrConfiguration
// и перечисляет все проблемы сразу.
func (c *Config) Validate() error {
	var problems []string
	missing := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, "missing "+name)
		}
	}

	missing("RPC_PROVIDER", c.RPCProvider)
	missing("PORTER_URL", c.PorterURL)
	missing("WALLET_PATH", c.WalletPath)
	missing("WALLET_PASSWORD", c.WalletPassword)
	missing("HOME_UUID", c.HomeUUID)
	if c.ChainID == 0 {
		problems = append(problems, "missing CHAIN_ID")
	}
	if c.ContractAddress == "" {
		problems = append(problems, "missing CONTRACT_ADDRESS")
	} else if !common.IsHexAddress(c.ContractAddress) {
		problems = append(problems, fmt.Sprintf("CONTRACT_ADDRESS %q is not a valid address", c.ContractAddress))
	}

	switch c.StorageBackend {
	case "pinata":
		missing("PINATA_JWT_KEY", c.PinataJWT)
	case "local":
		missing("DATABASE_URI", c.DatabaseDSN)
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if _, err := ParsePrefixes(c.AllowedNetworks); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ParsePrefixes разбирает список IP и CIDR. Одиночный IP становится /32 (/128).
func ParsePrefixes(list []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("invalid network %q: %v", s, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %v", s, err)
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	if len(out) == 0 {
		return nil, errors.New("allowed networks list is empty")
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
