package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cfguard/internal/models"
)

const DefaultPath = "/etc/cf-under-attack.conf"

type AlertMode string

const (
	AlertNone     AlertMode = "none"
	AlertSlack    AlertMode = "slack"
	AlertEmail    AlertMode = "email"
	AlertCommand  AlertMode = "command"
	AlertTelegram AlertMode = "telegram"
)

type Config struct {
	ZoneID      string
	APIToken    string
	APIBase     string
	APITimeout  time.Duration
	Threshold   float64
	LowLoadMode models.SecurityMode
	Cooldown    time.Duration

	Alert AlertConfig

	StateDB       string
	LockFile      string
	LoopInterval  time.Duration
	HTTPAddr      string
	RetentionDays int
	LogLevel      string
	LogFormat     string
}

type AlertConfig struct {
	Mode          AlertMode
	Cooldown      time.Duration
	OnFailure     bool
	SlackWebhook  string
	SlackBlocks   bool
	EmailTo       string
	EmailFrom     string
	EmailSubject  string
	Command       string
	TelegramToken string
	TelegramChat  string
}

// Error is a missing or invalid setting. It is fatal at startup.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
}

// Load reads the conf file at path and applies environment overrides.
func Load(path string) (Config, error) {
	values, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return fromSource(source{file: values, env: os.LookupEnv})
}

func fromSource(s source) (Config, error) {
	host, _ := os.Hostname()
	cfg := Config{
		ZoneID:      s.get("ZONE_ID", ""),
		APIToken:    s.get("CF_API_TOKEN", ""),
		APIBase:     strings.TrimRight(s.get("CF_API_BASE", "https://api.cloudflare.com/client/v4"), "/"),
		APITimeout:  s.getDuration("API_TIMEOUT", 15*time.Second),
		Threshold:   s.getFloat("LOAD_THRESHOLD", 7.0),
		LowLoadMode: models.SecurityMode(strings.ToLower(s.get("LOW_LOAD_MODE", string(models.ModeMedium)))),
		Cooldown:    hours(s.getFloat("COOLDOWN_HOURS", 3)),
		Alert: AlertConfig{
			Mode:          AlertMode(strings.ToLower(s.get("ALERT_MODE", string(AlertNone)))),
			Cooldown:      minutes(s.getFloat("ALERT_COOLDOWN_MIN", 30)),
			OnFailure:     s.getBool("ALERT_ON_FAILURE", false),
			SlackWebhook:  s.get("ALERT_SLACK_WEBHOOK", ""),
			SlackBlocks:   s.getBool("ALERT_SLACK_USE_BLOCKS", true),
			EmailTo:       s.get("ALERT_EMAIL_TO", ""),
			EmailFrom:     s.get("ALERT_EMAIL_FROM", "cf-guard@"+host),
			EmailSubject:  s.get("ALERT_EMAIL_SUBJECT_PREFIX", "[CF Guard]"),
			Command:       s.get("ALERT_COMMAND", ""),
			TelegramToken: s.get("ALERT_TELEGRAM_TOKEN", ""),
			TelegramChat:  s.get("ALERT_TELEGRAM_CHAT_ID", ""),
		},
		StateDB:       s.get("STATE_DB", "/var/lib/cf-guard/state.db"),
		LockFile:      s.get("LOCK_FILE", "/run/lock/cf-guard.lock"),
		LoopInterval:  s.getDuration("LOOP_INTERVAL", 0),
		HTTPAddr:      s.get("HTTP_ADDR", ""),
		RetentionDays: s.getInt("HISTORY_RETENTION_DAYS", 14),
		LogLevel:      s.get("LOG_LEVEL", "info"),
		LogFormat:     s.get("LOG_FORMAT", "json"),
	}
	if len(s.errs) > 0 {
		return Config{}, s.errs[0]
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ZoneID == "" {
		return &Error{Key: "ZONE_ID", Msg: "required"}
	}
	if c.APIToken == "" {
		return &Error{Key: "CF_API_TOKEN", Msg: "required"}
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold <= 0 {
		return &Error{Key: "LOAD_THRESHOLD", Msg: "must be a positive finite number"}
	}
	if !c.LowLoadMode.Valid() {
		return &Error{Key: "LOW_LOAD_MODE", Msg: fmt.Sprintf("unknown security level %q", c.LowLoadMode)}
	}
	if c.LowLoadMode == models.ModeUnderAttack {
		return &Error{Key: "LOW_LOAD_MODE", Msg: "must differ from under_attack"}
	}
	if c.Cooldown < 0 {
		return &Error{Key: "COOLDOWN_HOURS", Msg: "must not be negative"}
	}
	if c.Alert.Cooldown < 0 {
		return &Error{Key: "ALERT_COOLDOWN_MIN", Msg: "must not be negative"}
	}
	if c.APITimeout <= 0 {
		return &Error{Key: "API_TIMEOUT", Msg: "must be positive"}
	}
	if c.StateDB == "" {
		return &Error{Key: "STATE_DB", Msg: "required"}
	}
	switch c.Alert.Mode {
	case AlertNone:
	case AlertSlack:
		if c.Alert.SlackWebhook == "" {
			return &Error{Key: "ALERT_SLACK_WEBHOOK", Msg: "required when ALERT_MODE=slack"}
		}
	case AlertEmail:
		if c.Alert.EmailTo == "" {
			return &Error{Key: "ALERT_EMAIL_TO", Msg: "required when ALERT_MODE=email"}
		}
	case AlertCommand:
		if c.Alert.Command == "" {
			return &Error{Key: "ALERT_COMMAND", Msg: "required when ALERT_MODE=command"}
		}
	case AlertTelegram:
		if c.Alert.TelegramToken == "" || c.Alert.TelegramChat == "" {
			return &Error{Key: "ALERT_TELEGRAM_CHAT_ID", Msg: "token and chat id required when ALERT_MODE=telegram"}
		}
		if _, err := strconv.ParseInt(c.Alert.TelegramChat, 10, 64); err != nil {
			return &Error{Key: "ALERT_TELEGRAM_CHAT_ID", Msg: "must be numeric"}
		}
	default:
		return &Error{Key: "ALERT_MODE", Msg: fmt.Sprintf("unknown alert mode %q", c.Alert.Mode)}
	}
	return nil
}

// MarshalZerologObject logs the effective settings without credentials.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("zone_id", c.ZoneID).
		Str("api_base", c.APIBase).
		Float64("threshold", c.Threshold).
		Str("low_load_mode", string(c.LowLoadMode)).
		Dur("cooldown", c.Cooldown).
		Str("alert_mode", string(c.Alert.Mode)).
		Dur("alert_cooldown", c.Alert.Cooldown).
		Str("state_db", c.StateDB).
		Str("lock_file", c.LockFile).
		Dur("loop_interval", c.LoopInterval).
		Str("http_addr", c.HTTPAddr)
}

func hours(h float64) time.Duration   { return time.Duration(h * float64(time.Hour)) }
func minutes(m float64) time.Duration { return time.Duration(m * float64(time.Minute)) }

// source resolves a key from the environment first, then the conf file.
type source struct {
	file map[string]string
	env  func(string) (string, bool)
	errs []error
}

func (s *source) lookup(k string) (string, bool) {
	if s.env != nil {
		if v, ok := s.env(k); ok && v != "" {
			return v, true
		}
	}
	v, ok := s.file[k]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *source) get(k, d string) string {
	if v, ok := s.lookup(k); ok {
		return v
	}
	return d
}

func (s *source) getFloat(k string, d float64) float64 {
	v, ok := s.lookup(k)
	if !ok {
		return d
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		s.errs = append(s.errs, &Error{Key: k, Msg: fmt.Sprintf("not a number: %q", v)})
		return d
	}
	return f
}

func (s *source) getInt(k string, d int) int {
	v, ok := s.lookup(k)
	if !ok {
		return d
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, &Error{Key: k, Msg: fmt.Sprintf("not an integer: %q", v)})
		return d
	}
	return n
}

func (s *source) getDuration(k string, d time.Duration) time.Duration {
	v, ok := s.lookup(k)
	if !ok {
		return d
	}
	dur, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, &Error{Key: k, Msg: fmt.Sprintf("not a duration: %q", v)})
		return d
	}
	return dur
}

func (s *source) getBool(k string, d bool) bool {
	v, ok := s.lookup(k)
	if !ok {
		return d
	}
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	s.errs = append(s.errs, &Error{Key: k, Msg: fmt.Sprintf("not a boolean: %q", v)})
	return d
}
