package config

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// All durations are Go duration strings ("500ms", "30s", "24h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	// Language selects the reply catalog ("en", "de").
	Language string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	// Timezone decides what "today" means for /menu. Subscription times are always UTC.
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`

	Logging   LoggingConfig    `json:"logging"`
	Storage   StorageConfig    `json:"storage"`
	Scheduler SchedulerConfig  `json:"scheduler"`
	Fetch     FetchConfig      `json:"fetch"`
	Delivery  DeliveryConfig   `json:"delivery"`
	Images    ImagesConfig     `json:"images"`
	Providers []ProviderConfig `json:"providers,omitempty" validate:"dive"`
	API       APIConfig        `json:"api"`
	Systemd   SystemdConfig    `json:"systemd"`
}

type TelegramConfig struct {
	Token string `json:"token" validate:"required"`
	// OwnerUserIDs may always run admin commands.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	// Workers and QueueSize size the command worker pool.
	Workers   int `json:"workers,omitempty" validate:"gte=0,lte=64"`
	QueueSize int `json:"queue_size,omitempty" validate:"gte=0"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" validate:"required_if=Enabled true"`
}

// StorageConfig selects where subscriptions and user settings live.
//
//	"storage": { "driver": "file", "path": "./data/biteboard.json" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=file json sqlite sqlite3"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type SchedulerConfig struct {
	// Enabled is a pointer so an omitted key means "on".
	Enabled      *bool  `json:"enabled,omitempty"`
	Tick         string `json:"tick,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// CatchUp delivers a missed daily menu on the next tick.
	CatchUp bool `json:"catch_up,omitempty"`
}

type FetchConfig struct {
	Timeout       string  `json:"timeout,omitempty"`
	RetryMax      int     `json:"retry_max,omitempty" validate:"gte=0,lte=10"`
	RetryBase     string  `json:"retry_base,omitempty"`
	RetryMaxDelay string  `json:"retry_max_delay,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec,omitempty" validate:"gte=0"`
	UserAgent     string  `json:"user_agent,omitempty"`
}

type DeliveryConfig struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty" validate:"gte=0"`
	RetryMax   int     `json:"retry_max,omitempty" validate:"gte=0,lte=10"`
	RetryBase  string  `json:"retry_base,omitempty"`
	// DeleteImagesAfter removes image messages after this long; empty or "0s" keeps them.
	DeleteImagesAfter string `json:"delete_images_after,omitempty"`
	StripHeight       int    `json:"strip_height,omitempty" validate:"gte=0,lte=2000"`
}

type ImagesConfig struct {
	Service             string `json:"service,omitempty" validate:"omitempty,oneof=none dummy googleApi googlePage"`
	GoogleAPIKey        string `json:"google_api_key,omitempty" validate:"required_if=Service googleApi"`
	GoogleApplicationID string `json:"google_application_id,omitempty" validate:"required_if=Service googleApi"`
	Endpoint            string `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// ProviderConfig describes one cafeteria page. When the list is empty the
// built-in providers are used.
type ProviderConfig struct {
	Name      string `json:"name" validate:"required"`
	Link      string `json:"link,omitempty" validate:"omitempty,url"`
	Thumbnail string `json:"thumbnail,omitempty" validate:"omitempty,url"`
	Layout    string `json:"layout" validate:"required,oneof=day week"`
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=GET POST get post"`
	// URL may contain "{date}" for GET providers.
	URL       string `json:"url" validate:"required"`
	FormField string `json:"form_field,omitempty"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	// AccessKey enables /api/*; never logged.
	AccessKey string `json:"access_key,omitempty"`
	// Pprof mounts runtime profiles under /api/debug/pprof.
	Pprof bool `json:"pprof,omitempty" validate:"excluded_without=AccessKey"`
}

type SystemdConfig struct {
	// Notify sends READY/STOPPING/WATCHDOG when NOTIFY_SOCKET is set.
	Notify bool `json:"notify"`
}
