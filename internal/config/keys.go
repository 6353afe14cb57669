package config

// Configuration keys. The environment variable is the upper-cased key.
const (
	keyDiskThreshold = "disk_threshold"
	keyTempThreshold = "temp_threshold"
	keyLoadThreshold = "load_threshold"
	keyMemThreshold  = "mem_threshold"
	keySuppressMin   = "suppress_min"

	keyDiskPaths      = "disk_paths"
	keyPartitionRoot  = "partition_root"
	keyImageDirLabel  = "image_dir_label"
	keyImagePattern   = "image_pattern"
	keyNewImageWindow = "new_image_window"
	keyTempSensor     = "temp_sensor"
	keyThermalZone    = "thermal_zone"
	keyCollectTimeout = "collect_timeout"

	keyDataDir      = "data_dir"
	keyLogPath      = "log_path"
	keySuppressFile = "suppress_file"
	keyStoreBackend = "store_backend"
	keyStoreDB      = "store_db"

	keyNotifier      = "notifier"
	keyGASWebhook    = "gas_webhook"
	keySlackUserID   = "slack_user_id"
	keySlackToken    = "slack_bot_token"
	keySlackChannel  = "slack_channel"
	keySlackDMEmail  = "slack_dm_email"
	keySlackCacheDir = "slack_cache_dir"
	keyNotifyTimeout = "notify_timeout"
	keyNotifyRetries = "notify_retries"
	keyHostLabel     = "host_label"

	keyBrightnessNotifier = "brightness_notifier"
	keyBrightnessDir      = "brightness_dir"
	keyBrightnessDark     = "brightness_dark"
	keyBrightnessBright   = "brightness_bright"
	keyBrightnessMarker   = "brightness_marker"

	keyLogLevel = "log_level"
	keyLogFile  = "log_file"
	keyPidDir   = "pid_dir"
)
