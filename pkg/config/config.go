package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Request   RequestConfig   `yaml:"request"`
	Routing   RoutingConfig   `yaml:"routing"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Auth      AuthConfig      `yaml:"auth"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// RoutingConfig holds settings for the driving-route provider.
type RoutingConfig struct {
	Provider string   `yaml:"provider"` // "osrm", "none"
	BaseURL  string   `yaml:"base_url"`
	Profile  string   `yaml:"profile"`
	Timeout  Duration `yaml:"timeout"`
}

// NarrativeConfig holds the scroll-driven map narrative settings.
type NarrativeConfig struct {
	Breakpoints []float64         `yaml:"breakpoints"`
	Band        BandConfig        `yaml:"band"`
	Initial     CameraSettings    `yaml:"initial"`
	SettleDelay Duration          `yaml:"settle_delay"`
	POIStagger  Duration          `yaml:"poi_stagger"`
	Segments    []SegmentSettings `yaml:"segments"`
}

// BandConfig describes the activation band as margins of the scroll container.
type BandConfig struct {
	Top    float64 `yaml:"top" json:"top"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
}

// SegmentSettings holds the choreography of one narrative segment.
type SegmentSettings struct {
	ID          int            `yaml:"id"`
	Camera      CameraSettings `yaml:"camera"`
	Reveal      string         `yaml:"reveal"` // "none", "pois", "office"
	RevealDelay Duration       `yaml:"reveal_delay"`
	Title       string         `yaml:"title"`
	Body        string         `yaml:"body"`
}

// CameraSettings is a camera target.
type CameraSettings struct {
	Lat      float64  `yaml:"lat"`
	Lon      float64  `yaml:"lon"`
	Zoom     float64  `yaml:"zoom"`
	Duration Duration `yaml:"duration"`
}

// CatalogConfig holds settings for the lodging/restaurant/activity/event catalogs.
type CatalogConfig struct {
	Path         string   `yaml:"path"` // empty: embedded dataset
	NearbyRadius Distance `yaml:"nearby_radius"`
}

// AuthConfig holds the admin gate settings.
type AuthConfig struct {
	User         string   `yaml:"user"`
	Password     string   `yaml:"password"`
	CookieName   string   `yaml:"cookie_name"`
	SessionTTL   Duration `yaml:"session_ttl"`
	RememberTTL  Duration `yaml:"remember_ttl"`
	SecureCookie bool     `yaml:"secure_cookie"` // HTTPS-only session cookie
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path: "./logs/events.log",
			},
		},
		DB: DBConfig{
			Path:     "./data/cilaos.db",
			CacheTTL: Duration(7 * Day),
		},
		Server: ServerConfig{
			Address:   "localhost:8420",
			StaticDir: "./web",
		},
		Request: RequestConfig{
			Retries: 1,
			Timeout: Duration(10 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Routing: RoutingConfig{
			Provider: "osrm",
			BaseURL:  "https://router.project-osrm.org",
			Profile:  "driving",
			Timeout:  Duration(8 * time.Second),
		},
		Narrative: DefaultNarrative(),
		Catalog: CatalogConfig{
			NearbyRadius: Distance(1500),
		},
		Auth: AuthConfig{
			User:        "mayza",
			CookieName:  "cilaos_session",
			SessionTTL:  Duration(12 * time.Hour),
			RememberTTL: Duration(30 * Day),
		},
	}
}

// DefaultNarrative returns the four-stage itinerary from the airport to the Cilaos tourist office.
func DefaultNarrative() NarrativeConfig {
	return NarrativeConfig{
		Breakpoints: []float64{0.28, 0.43, 0.52},
		Band:        BandConfig{Top: 0.40, Bottom: 0.40},
		Initial:     CameraSettings{Lat: -21.03, Lon: 55.38, Zoom: 10},
		SettleDelay: Duration(1 * time.Second),
		POIStagger:  Duration(100 * time.Millisecond),
		Segments: []SegmentSettings{
			{
				ID:     1,
				Camera: CameraSettings{Lat: -20.95, Lon: 55.40, Zoom: 11, Duration: Duration(1500 * time.Millisecond)},
				Reveal: "none",
				Title:  "Étape 1: Le littoral nord",
				Body:   "De l'aéroport au Port - 12 km de côte sauvage",
			},
			{
				ID:     2,
				Camera: CameraSettings{Lat: -21.05, Lon: 55.30, Zoom: 11, Duration: Duration(1500 * time.Millisecond)},
				Reveal: "none",
				Title:  "Étape 2: La côte ouest",
				Body:   "Du Port à Saint-Leu - Plages et lagons",
			},
			{
				ID:          3,
				Camera:      CameraSettings{Lat: -21.15, Lon: 55.46, Zoom: 11, Duration: Duration(1500 * time.Millisecond)},
				Reveal:      "pois",
				RevealDelay: Duration(1500 * time.Millisecond),
				Title:       "Étape 3: Vers les hauts",
				Body:        "De Saint-Leu à Saint-Louis - Les merveilles de Cilaos",
			},
			{
				ID:          4,
				Camera:      CameraSettings{Lat: -21.1339, Lon: 55.4708, Zoom: 15, Duration: Duration(2 * time.Second)},
				Reveal:      "office",
				RevealDelay: Duration(2 * time.Second),
				Title:       "Étape 4: Les 421 virages",
				Body:        "La mythique RN5 jusqu'à l'Office de Tourisme",
			},
		},
	}
}

// Validate checks invariants the narrative choreography relies on.
func (c *Config) Validate() error {
	var errs []error

	n := c.Narrative
	if len(n.Breakpoints) != 3 {
		errs = append(errs, fmt.Errorf("narrative.breakpoints: need 3 values, got %d", len(n.Breakpoints)))
	} else {
		prev := 0.0
		for i, b := range n.Breakpoints {
			if b <= prev || b >= 1 {
				errs = append(errs, fmt.Errorf("narrative.breakpoints[%d]=%v: must be strictly increasing in (0,1)", i, b))
			}
			prev = b
		}
	}

	if n.Band.Top < 0 || n.Band.Bottom < 0 || n.Band.Top+n.Band.Bottom >= 1 {
		errs = append(errs, fmt.Errorf("narrative.band: margins %v/%v leave no activation band", n.Band.Top, n.Band.Bottom))
	}

	var poiDelay, officeDelay time.Duration
	seen := make(map[int]bool)
	for _, s := range n.Segments {
		if s.ID < 1 || s.ID > 4 {
			errs = append(errs, fmt.Errorf("narrative.segments: id %d outside 1..4", s.ID))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("narrative.segments: duplicate id %d", s.ID))
		}
		seen[s.ID] = true

		switch s.Reveal {
		case "", "none":
		case "pois", "office":
			if s.RevealDelay < s.Camera.Duration {
				errs = append(errs, fmt.Errorf("narrative.segments[%d]: reveal_delay %v shorter than camera duration %v",
					s.ID, time.Duration(s.RevealDelay), time.Duration(s.Camera.Duration)))
			}
			if s.Reveal == "pois" {
				poiDelay = time.Duration(s.RevealDelay)
			} else {
				officeDelay = time.Duration(s.RevealDelay)
			}
		default:
			errs = append(errs, fmt.Errorf("narrative.segments[%d]: unknown reveal %q", s.ID, s.Reveal))
		}
	}
	if poiDelay > 0 && officeDelay > 0 && officeDelay <= poiDelay {
		errs = append(errs, fmt.Errorf("narrative: office reveal_delay %v must exceed POI reveal_delay %v", officeDelay, poiDelay))
	}

	switch c.Routing.Provider {
	case "osrm":
		// The route is fetched once; any failure falls back to the straight line.
		if c.Request.Retries > 1 {
			errs = append(errs, fmt.Errorf("request.retries: %d, the osrm route is fetched in a single attempt", c.Request.Retries))
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Errorf("routing.provider: unknown provider %q", c.Routing.Provider))
	}

	return errors.Join(errs...)
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, defaults are merged with its values but nothing is written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv fills secrets and deployment specifics from the environment, never saved to disk.
func applyEnv(cfg *Config) {
	if cfg.Auth.Password == "" {
		if v := os.Getenv("CILAOS_ADMIN_PASSWORD"); v != "" {
			cfg.Auth.Password = v
		}
	}
	if v := os.Getenv("CILAOS_OSRM_URL"); v != "" {
		cfg.Routing.BaseURL = v
	}
	if v := os.Getenv("CILAOS_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}

	cfg.DB.Path = os.ExpandEnv(cfg.DB.Path)
	cfg.Log.Server.Path = os.ExpandEnv(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = os.ExpandEnv(cfg.Log.Requests.Path)
	cfg.Log.Events.Path = os.ExpandEnv(cfg.Log.Events.Path)
	cfg.Catalog.Path = os.ExpandEnv(cfg.Catalog.Path)
	cfg.Server.StaticDir = os.ExpandEnv(cfg.Server.StaticDir)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Cilaos Narrative Server Configuration
# --------------------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers)
# Secrets: auth.password falls back to CILAOS_ADMIN_PASSWORD (.env is read at startup)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: osrm, none\n${1}provider:"))

	reReveal := regexp.MustCompile(`(?m)^(\s+)reveal:`)
	data = reReveal.ReplaceAll(data, []byte("${1}# Options: none, pois, office\n${1}reveal:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
