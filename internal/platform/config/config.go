package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/personnel/internal/core/personnel"
	"gopkg.in/yaml.v3"
)

const (
	// PasserellePostgres は PostgreSQL を永続化に利用します。
	PasserellePostgres = "postgres"
	// PasserelleMemory はプロセス内メモリを永続化に利用します。
	PasserelleMemory = "memory"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    LoggerConfig    `yaml:"logger"`
	Personnel PersonnelConfig `yaml:"personnel"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Passerelle string `yaml:"passerelle"`
}

// DefaultMigrationsDir は人事スキーマのマイグレーションを置くディレクトリです。
const DefaultMigrationsDir = "assets/migrations"

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
	ApplicationName    string        `yaml:"application_name"`
	IsolationLevel     string        `yaml:"isolation_level"`
	MigrationsDir      string        `yaml:"migrations_dir"`
}

// LoggerConfig はログ出力に関する設定です。
type LoggerConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// PersonnelConfig は人事管理の振る舞いに関する設定です。
type PersonnelConfig struct {
	LigueRemovalPolicyRaw string                       `yaml:"ligue_removal_policy"`
	LigueRemovalPolicy    personnel.LigueRemovalPolicy `yaml:"-"`
	Root                  RootConfig                   `yaml:"root"`
}

// RootConfig は空のストアで作成する root の値です。
type RootConfig struct {
	Nom      string `yaml:"nom"`
	Prenom   string `yaml:"prenom"`
	Mail     string `yaml:"mail"`
	Password string `yaml:"password"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Passerelle)) {
	case "", PasserellePostgres:
		c.Server.Passerelle = PasserellePostgres
		db := &c.Database
		if err := db.validateAndNormalize(); err != nil {
			return err
		}
	case PasserelleMemory:
		c.Server.Passerelle = PasserelleMemory
	default:
		return fmt.Errorf("config: server.passerelle %q is not supported", c.Server.Passerelle)
	}

	if c.Logger.Mode == "" {
		c.Logger.Mode = "development"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	policy, err := personnel.ParseLigueRemovalPolicy(c.Personnel.LigueRemovalPolicyRaw)
	if err != nil {
		return fmt.Errorf("config: personnel.ligue_removal_policy: %w", err)
	}
	c.Personnel.LigueRemovalPolicy = policy

	if c.Personnel.Root.Nom == "" {
		c.Personnel.Root.Nom = personnel.DefaultRoot.Nom
	}
	if c.Personnel.Root.Password == "" {
		c.Personnel.Root.Password = personnel.DefaultRoot.Password
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.ApplicationName == "" {
		d.ApplicationName = "personnel"
	}
	if strings.TrimSpace(d.MigrationsDir) == "" {
		d.MigrationsDir = DefaultMigrationsDir
	}
	switch strings.ToLower(strings.TrimSpace(d.IsolationLevel)) {
	case "":
		d.IsolationLevel = "read_committed"
	case "read_committed", "repeatable_read", "serializable":
		d.IsolationLevel = strings.ToLower(strings.TrimSpace(d.IsolationLevel))
	default:
		return fmt.Errorf("config: database.isolation_level %q is not supported", d.IsolationLevel)
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// RootDefaults は root 設定を personnel.RootDefaults に変換します。
func (r RootConfig) RootDefaults() personnel.RootDefaults {
	return personnel.RootDefaults{
		Nom:      r.Nom,
		Prenom:   r.Prenom,
		Mail:     r.Mail,
		Password: r.Password,
	}
}
