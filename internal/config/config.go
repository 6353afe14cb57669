package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/tlmon/internal/alert"
	"codeberg.org/mutker/tlmon/internal/brightness"
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/suppress"
	"codeberg.org/mutker/tlmon/internal/timeseries"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel   = LogLevelInfo
	defaultConfigFile = ".env"
	defaultDataDir    = "./log"
	defaultDiskPaths  = "images=/home/pi/timelapse-system/images,archived=/home/pi/timelapse-system/archived"
	defaultSuppress   = 30
	defaultRetries    = 1

	// Images go through the Slack bot; the webhook relay carries text only.
	defaultBrightnessNotifier = notify.KindSlack
)

// Config is the resolved configuration, built once at startup and passed
// into component constructors.
type Config struct {
	Thresholds alert.Thresholds
	Cooldown   time.Duration

	Metrics  metrics.Config
	Store    timeseries.Config
	Suppress suppress.Config
	Notify   notify.Config
	// MediaNotify delivers the brightness and report images. It shares the
	// Slack credentials of Notify but has its own kind.
	MediaNotify notify.Config
	Host        string
	Brightness  brightness.Config
	// BrightnessGate rate-limits brightness alerts separately.
	BrightnessGate suppress.Config

	DataDir  string
	LogLevel LogLevel
	LogFile  string
	PidDir   string
}

// raw mirrors the flat key space read by viper.
type raw struct {
	DiskThreshold float64 `mapstructure:"disk_threshold"`
	TempThreshold float64 `mapstructure:"temp_threshold"`
	LoadThreshold float64 `mapstructure:"load_threshold"`
	MemThreshold  float64 `mapstructure:"mem_threshold"`
	SuppressMin   int     `mapstructure:"suppress_min"`

	DiskPaths      string        `mapstructure:"disk_paths"`
	PartitionRoot  string        `mapstructure:"partition_root"`
	ImageDirLabel  string        `mapstructure:"image_dir_label"`
	ImagePattern   string        `mapstructure:"image_pattern"`
	NewImageWindow time.Duration `mapstructure:"new_image_window"`
	TempSensor     string        `mapstructure:"temp_sensor"`
	ThermalZone    string        `mapstructure:"thermal_zone"`
	CollectTimeout time.Duration `mapstructure:"collect_timeout"`

	DataDir      string `mapstructure:"data_dir"`
	LogPath      string `mapstructure:"log_path"`
	SuppressFile string `mapstructure:"suppress_file"`
	StoreBackend string `mapstructure:"store_backend"`
	StoreDB      string `mapstructure:"store_db"`

	Notifier      string        `mapstructure:"notifier"`
	GASWebhook    string        `mapstructure:"gas_webhook"`
	SlackUserID   string        `mapstructure:"slack_user_id"`
	SlackToken    string        `mapstructure:"slack_bot_token"`
	SlackChannel  string        `mapstructure:"slack_channel"`
	SlackDMEmail  string        `mapstructure:"slack_dm_email"`
	SlackCacheDir string        `mapstructure:"slack_cache_dir"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
	NotifyRetries int           `mapstructure:"notify_retries"`
	HostLabel     string        `mapstructure:"host_label"`

	BrightnessNotifier string  `mapstructure:"brightness_notifier"`
	BrightnessDir      string  `mapstructure:"brightness_dir"`
	BrightnessDark     float64 `mapstructure:"brightness_dark"`
	BrightnessBright   float64 `mapstructure:"brightness_bright"`
	BrightnessMarker   string  `mapstructure:"brightness_marker"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	PidDir   string `mapstructure:"pid_dir"`
}

// Load resolves configuration from defaults, an optional dotenv file, the
// environment and flags, in increasing precedence, then validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{hostname: os.Hostname}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
	}
	v.AutomaticEnv()

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	if o.flags != nil {
		if f := o.flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag(keyLogLevel, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
		if debug, err := o.flags.GetBool("debug"); err == nil && debug {
			v.Set(keyLogLevel, string(LogLevelDebug))
		}
	}

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	cfg, err := build(r, o)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	th := alert.DefaultThresholds()
	v.SetDefault(keyDiskThreshold, th.Disk)
	v.SetDefault(keyTempThreshold, th.Temp)
	v.SetDefault(keyLoadThreshold, th.Load)
	v.SetDefault(keyMemThreshold, th.Mem)
	v.SetDefault(keySuppressMin, defaultSuppress)

	mc := metrics.DefaultConfig()
	v.SetDefault(keyDiskPaths, defaultDiskPaths)
	v.SetDefault(keyPartitionRoot, mc.PartitionRoot)
	v.SetDefault(keyImageDirLabel, mc.ImageDirLabel)
	v.SetDefault(keyImagePattern, mc.ImagePattern)
	v.SetDefault(keyNewImageWindow, mc.NewImageWindow)
	v.SetDefault(keyTempSensor, mc.TempSensor)
	v.SetDefault(keyThermalZone, mc.ThermalZone)
	v.SetDefault(keyCollectTimeout, mc.Timeout)

	// Paths under the data directory are derived in build when left empty.
	v.SetDefault(keyDataDir, defaultDataDir)
	v.SetDefault(keyLogPath, "")
	v.SetDefault(keySuppressFile, "")
	v.SetDefault(keyStoreBackend, string(timeseries.BackendCSV))
	v.SetDefault(keyStoreDB, "")

	nc := notify.DefaultConfig()
	v.SetDefault(keyNotifier, string(nc.Kind))
	v.SetDefault(keyGASWebhook, "")
	v.SetDefault(keySlackUserID, "")
	v.SetDefault(keySlackToken, "")
	v.SetDefault(keySlackChannel, "")
	v.SetDefault(keySlackDMEmail, "")
	v.SetDefault(keySlackCacheDir, "")
	v.SetDefault(keyNotifyTimeout, nc.Timeout)
	v.SetDefault(keyNotifyRetries, defaultRetries)
	v.SetDefault(keyHostLabel, "")

	bc := brightness.DefaultConfig()
	v.SetDefault(keyBrightnessNotifier, string(defaultBrightnessNotifier))
	v.SetDefault(keyBrightnessDir, "")
	v.SetDefault(keyBrightnessDark, bc.Dark)
	v.SetDefault(keyBrightnessBright, bc.Bright)
	v.SetDefault(keyBrightnessMarker, "")

	v.SetDefault(keyLogLevel, string(DefaultLogLevel))
	v.SetDefault(keyLogFile, "")
	v.SetDefault(keyPidDir, "")
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errFactory.WithData(errors.ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}

func build(r raw, o *options) (*Config, error) {
	dataDir := r.DataDir
	inData := func(value, name string) string {
		if value != "" {
			return value
		}
		return filepath.Join(dataDir, name)
	}

	dirs, err := ParseDirs(r.DiskPaths)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Thresholds: alert.Thresholds{
			Disk: r.DiskThreshold,
			Temp: r.TempThreshold,
			Load: r.LoadThreshold,
			Mem:  r.MemThreshold,
		},
		Cooldown: time.Duration(r.SuppressMin) * time.Minute,
		DataDir:  dataDir,
		LogLevel: LogLevel(strings.ToLower(strings.TrimSpace(r.LogLevel))),
		LogFile:  inData(r.LogFile, "monitor.log"),
		PidDir:   r.PidDir,
		Host:     r.HostLabel,
	}

	if cfg.PidDir == "" {
		cfg.PidDir = os.TempDir()
	}

	if cfg.Host == "" {
		host, err := o.hostname()
		if err != nil || host == "" {
			host = "unknown-host"
		}
		cfg.Host = host
	}

	cfg.Metrics = metrics.Config{
		Dirs:           dirs,
		PartitionRoot:  r.PartitionRoot,
		ImageDirLabel:  r.ImageDirLabel,
		ImagePattern:   r.ImagePattern,
		NewImageWindow: r.NewImageWindow,
		TempSensor:     r.TempSensor,
		ThermalZone:    r.ThermalZone,
		Timeout:        r.CollectTimeout,
	}

	cfg.Store = timeseries.DefaultConfig()
	cfg.Store.Backend = timeseries.Backend(strings.ToLower(r.StoreBackend))
	cfg.Store.Path = inData(r.LogPath, "system_log.csv")
	cfg.Store.DBPath = inData(r.StoreDB, "system_log.db")
	cfg.Store.Labels = cfg.Metrics.Labels()

	cfg.Suppress = suppress.Config{
		Path:     inData(r.SuppressFile, "last_alert"),
		Cooldown: cfg.Cooldown,
	}

	cfg.Notify = notify.DefaultConfig()
	cfg.Notify.Kind = notify.Kind(strings.ToLower(r.Notifier))
	cfg.Notify.Timeout = r.NotifyTimeout
	cfg.Notify.Retries = r.NotifyRetries
	cfg.Notify.WebhookURL = r.GASWebhook
	cfg.Notify.UserID = r.SlackUserID
	cfg.Notify.BotToken = r.SlackToken
	cfg.Notify.Channel = r.SlackChannel
	cfg.Notify.DMEmail = r.SlackDMEmail
	cfg.Notify.CacheDir = inData(r.SlackCacheDir, "cache")

	cfg.MediaNotify = cfg.Notify
	cfg.MediaNotify.Kind = notify.Kind(strings.ToLower(r.BrightnessNotifier))

	cfg.Brightness = brightness.DefaultConfig()
	cfg.Brightness.Dir = inData(r.BrightnessDir, "")
	cfg.Brightness.Dark = r.BrightnessDark
	cfg.Brightness.Bright = r.BrightnessBright

	cfg.BrightnessGate = suppress.Config{
		Path:     inData(r.BrightnessMarker, "last_alert_time"),
		Cooldown: cfg.Cooldown,
	}

	return cfg, nil
}

// ParseDirs parses "label=path" pairs separated by commas. A bare path is
// labelled with its base name. Order is kept.
func ParseDirs(s string) ([]metrics.Dir, error) {
	errFactory := errors.New()

	var dirs []metrics.Dir
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		label, path, ok := strings.Cut(part, "=")
		if !ok {
			path = label
			label = filepath.Base(filepath.Clean(path))
		}
		label, path = strings.TrimSpace(label), strings.TrimSpace(path)
		if label == "" || path == "" {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value string
			}{
				Field: keyDiskPaths,
				Value: part,
			})
		}

		dirs = append(dirs, metrics.Dir{Label: label, Path: path})
	}

	return dirs, nil
}

// Validate checks every component configuration. Credential gaps are
// reported as missing_configuration. MediaNotify credentials are checked when
// its gateway is built, since only the image actions need them.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Cooldown < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value time.Duration
		}{
			Field: keySuppressMin,
			Value: c.Cooldown,
		})
	}

	for _, validate := range []func() error{
		c.Thresholds.Validate,
		c.Metrics.Validate,
		c.Store.Validate,
		c.Suppress.Validate,
		c.Notify.Validate,
		c.MediaNotify.ValidateFileKind,
		c.Brightness.Validate,
		c.BrightnessGate.Validate,
	} {
		if err := validate(); err != nil {
			return errFactory.Wrap(errors.CodeOf(err), err)
		}
	}

	return nil
}
