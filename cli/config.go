package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/session"
)

// AppFs is the file system the commands read workloads and env files
// from, and write generated code to.
var AppFs = afero.NewOsFs()

// DefaultDSN is an in-memory SQLite database with foreign keys enforced.
const DefaultDSN = "file::memory:?_pragma=foreign_keys(1)"

// Config holds the configuration of the commands.
//
//	dialect: postgres
//	dsn: postgres://localhost/app?sslmode=disable
//	session:
//	  parallelism: 4
//	  concurrent: true
//	gen:
//	  target: ./model
//	  package: model
type Config struct {
	Dialect string         `mapstructure:"dialect"`
	DSN     string         `mapstructure:"dsn"`
	Session session.Config `mapstructure:"session"`
	Gen     GenConfig      `mapstructure:"gen"`
}

// GenConfig configures the gen command.
type GenConfig struct {
	Target  string `mapstructure:"target"`
	Package string `mapstructure:"package"`
}

// newViper returns a viper instance with the defaults, the environment
// bindings and the config search paths of the commands.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("dialect", dialect.SQLite)
	v.SetDefault("dsn", DefaultDSN)
	v.SetDefault("gen.target", "./model")
	v.SetDefault("gen.package", "model")
	v.SetEnvPrefix("UOW")
	v.AutomaticEnv()
	v.SetFs(AppFs)
	return v
}

// LoadConfig loads the configuration from the config file, the .env files
// and the environment. The file is searched as .uow.yaml in the working
// directory, the home directory and ~/.config/uow when path is empty.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".uow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "uow"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Dialect = dialect.Name(cfg.Dialect)
	return cfg, nil
}

// loadEnv loads .env, then .env.local over it, when they exist.
func loadEnv() error {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := loadEnvFile(".env", false); err != nil {
			return err
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := loadEnvFile(".env.local", true); err != nil {
			return err
		}
	}
	return nil
}

func loadEnvFile(name string, override bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for k, val := range env {
		if _, ok := os.LookupEnv(k); ok && !override {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}
