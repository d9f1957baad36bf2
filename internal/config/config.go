// Package config binds flags, environment and defaults into typed settings
// for the serve and chat commands.
package config

import (
	"net/url"
	"strings"

	"github.com/RichardoC/neurosci-ai/internal/llm"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	EnvPrefix    = "neurosci"
	APIKeyEnv    = "OPENAI_API_KEY"
	KeyAPIKey    = "openai-api-key"
	KeyAddr      = "addr"
	KeyBaseURL   = "openai-base-url"
	KeyModel     = "model"
	KeyUploadDir = "upload-dir"
	KeyKeep      = "keep-uploads"
	KeyServerURL = "server-url"
	KeyStore     = "store"
	KeyStorePath = "store-path"
	KeyDirect    = "direct"
	KeyHistory   = "history-file"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
)

// SetDefaults registers every default and the environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault(KeyAddr, ":8100")
	v.SetDefault(KeyBaseURL, llm.DefaultBaseURL)
	v.SetDefault(KeyModel, llm.DefaultModel)
	v.SetDefault(KeyUploadDir, "")
	v.SetDefault(KeyKeep, true)
	v.SetDefault(KeyServerURL, "http://localhost:8100")
	v.SetDefault(KeyStore, "sqlite")
	v.SetDefault(KeyStorePath, "neurosci.db")
	v.SetDefault(KeyDirect, false)
	v.SetDefault(KeyHistory, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v.BindEnv(KeyAPIKey, APIKeyEnv)
}

type Logging struct {
	Level  string
	Format string
}

func (l Logging) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return errors.Wrapf(err, "invalid %s", KeyLogLevel)
	}
	switch l.Format {
	case "json", "console":
		return nil
	default:
		return errors.Errorf("invalid %s %q: want json or console", KeyLogFormat, l.Format)
	}
}

// LLM holds what the completion gateway needs. APIKey may be empty: the
// gateway then runs unconfigured and reports it per request.
type LLM struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c LLM) Validate() error {
	if err := validateURL(KeyBaseURL, c.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.Errorf("%s must not be empty", KeyModel)
	}
	return nil
}

type Server struct {
	Addr        string
	UploadDir   string
	KeepUploads bool
	LLM         LLM
	Logging     Logging
}

func LoadServer(v *viper.Viper) (*Server, error) {
	s := &Server{
		Addr:        v.GetString(KeyAddr),
		UploadDir:   v.GetString(KeyUploadDir),
		KeepUploads: v.GetBool(KeyKeep),
		LLM:         loadLLM(v),
		Logging:     loadLogging(v),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return errors.Errorf("%s must not be empty", KeyAddr)
	}
	if err := s.LLM.Validate(); err != nil {
		return err
	}
	return s.Logging.Validate()
}

type Client struct {
	ServerURL   string
	Store       string
	StorePath   string
	Direct      bool
	HistoryFile string
	LLM         LLM
	Logging     Logging
}

func LoadClient(v *viper.Viper) (*Client, error) {
	c := &Client{
		ServerURL:   v.GetString(KeyServerURL),
		Store:       strings.ToLower(v.GetString(KeyStore)),
		StorePath:   v.GetString(KeyStorePath),
		Direct:      v.GetBool(KeyDirect),
		HistoryFile: v.GetString(KeyHistory),
		LLM:         loadLLM(v),
		Logging:     loadLogging(v),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Validate() error {
	switch c.Store {
	case "sqlite", "json":
		if strings.TrimSpace(c.StorePath) == "" {
			return errors.Errorf("%s is required for the %s store", KeyStorePath, c.Store)
		}
	case "memory":
	default:
		return errors.Errorf("invalid %s %q: want sqlite, json or memory", KeyStore, c.Store)
	}
	if c.Direct {
		if err := c.LLM.Validate(); err != nil {
			return err
		}
	} else if err := validateURL(KeyServerURL, c.ServerURL); err != nil {
		return err
	}
	return c.Logging.Validate()
}

func loadLLM(v *viper.Viper) LLM {
	return LLM{
		APIKey:  v.GetString(KeyAPIKey),
		BaseURL: v.GetString(KeyBaseURL),
		Model:   v.GetString(KeyModel),
	}
}

func loadLogging(v *viper.Viper) Logging {
	return Logging{
		Level:  v.GetString(KeyLogLevel),
		Format: v.GetString(KeyLogFormat),
	}
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("invalid %s %q: want an http(s) URL", key, raw)
	}
	return nil
}
