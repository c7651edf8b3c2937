// CLAUDE:SUMMARY Pipeline configuration: denylists, text ceiling, fetch tuning, YAML loader.
package adscan

import (
	"os"

	"gopkg.in/yaml.v3"
)

// defaultExcludedDomains is the curated denylist of destination domains:
// marketplaces, app stores, education platforms, payment processors, social
// networks, Google properties, telehealth portals and branded fitness. Matched
// as case-insensitive substrings with "*" wildcards stripped.
var defaultExcludedDomains = []string{
	// General marketplaces (global/EU/LATAM)
	"amazon", "amzn", "ebay", "aliexpress", "alibaba", "temu", "shein", "shopee", "dhgate",
	"mercadolibre", "mercadolivre", "mercadopago",
	"falabella", "linio", "liverpool.com.mx", "coppel", "walmart", "carrefour", "elcorteingles",
	"wish.com", "etsy", "rakuten", "zalando", "asos", "allegro", "cdiscount", "fnac", "bol.com",

	// App stores and digital content
	"play.google.com", "apps.apple.com", "itunes.apple.com", "app.apple.com",
	"store.steampowered", "epicgames", "microsoft.com/store",
	"wattpad", "webtoon", "goodreads", "audible", "*.reader", "*.book",

	// Educational and courses
	"hotmart", "udemy", "coursera", "teachable", "skillshare", "masterclass", "domestika", "crehana",

	// Payment and services
	"pay.", "paypal", "stripe", "shopify.com",

	// Social, messaging, video
	"facebook", "fb.me", "fb.com", "instagram", "whatsapp", "wa.me", "messenger",
	"twitter", "x.com", "tiktok", "snapchat", "pinterest", "linkedin", "reddit", "tumblr",
	"youtube", "youtu.be", "vimeo", "dailymotion", "twitch",
	"t.me", "telegram", "discord",

	// Google services
	"google", "g.co", "goo.gl", "maps.app.goo.gl", "forms.gle", "drive.google", "docs.google",

	// Medical/wellness portals and telehealth
	"betterhelp", "talkspace", "doctoralia", "mayoclinic", "webmd", "healthline",
	"network.mynursingcommunity.com",

	// Sports and branded fitness
	"nike", "adidas", "puma", "underarmour", "reebok", "gymshark", "decathlon",
	"myfitnesspal", "strava",
}

// defaultExcludedPaths are URL path fragments marking course, shop, therapy
// and fitness landing pages. Matched case-insensitively against the full URL.
var defaultExcludedPaths = []string{
	"/curso/", "/programa/", "/curso-online/", "/training/", "/academy/",
	"/shop/", "/store/", "/marketplace/", "/cart/", "/checkout/",
	"/psycholog", "/therapy/", "/counseling/", "/hypnosis/",
	"/fitness/", "/gym/", "/workout/",
	"/product/", "/item/",
}

// Config holds pipeline tuning and denylist overrides.
type Config struct {
	// ExcludedDomains / ExcludedPaths replace the built-in denylists when
	// non-empty.
	ExcludedDomains []string `yaml:"excluded_domains"`
	ExcludedPaths   []string `yaml:"excluded_paths"`

	// MaxTextLength is the combined title+body ceiling; longer ads are
	// treated as non-ad/spam content and excluded.
	MaxTextLength int `yaml:"max_text_length"`

	// MinFetchLimit is the floor applied to upstream fetch sizes (one
	// upstream credit covers up to this many ads).
	MinFetchLimit int `yaml:"min_fetch_limit"`

	// DefaultFetchLimit applies when a search request carries no limit.
	DefaultFetchLimit int `yaml:"default_fetch_limit"`

	// ClassifierTextCap truncates text submitted to the contextual
	// classifier.
	ClassifierTextCap int `yaml:"classifier_text_cap"`
}

func (c *Config) defaults() {
	if len(c.ExcludedDomains) == 0 {
		c.ExcludedDomains = defaultExcludedDomains
	}
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = defaultExcludedPaths
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = 4000
	}
	if c.MinFetchLimit <= 0 {
		c.MinFetchLimit = 100
	}
	if c.DefaultFetchLimit <= 0 {
		c.DefaultFetchLimit = 200
	}
	if c.ClassifierTextCap <= 0 {
		c.ClassifierTextCap = 8000
	}
}

// LoadConfigFile reads a YAML config, applying defaults for absent fields.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return &cfg, nil
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.defaults()
	return &cfg
}
