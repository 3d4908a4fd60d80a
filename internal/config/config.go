package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/cbir/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed retrieval.yaml
var retrievalYAML []byte

type Config struct {
	Corpus    CorpusConfig
	Database  DatabaseConfig
	Web       WebConfig
	Retrieval RetrievalConfig
}

type CorpusConfig struct {
	ImageDir    string // directory holding the raw images
	PathPattern string // file name pattern, {id} is replaced by the image identifier
	Size        int    // number of images, identifiers are 1..Size
	DataDir     string // directory for the file backend (histograms, matrices, ranking caches)
	Workers     int    // parallel histogram extraction workers
}

// ImagePath returns the path of the image with the given identifier.
// The identifier is substituted into the pattern, never parsed back out of it.
func (c *CorpusConfig) ImagePath(id int) string {
	pattern := c.PathPattern
	if pattern == "" {
		pattern = constants.DefaultPathPattern
	}
	name := strings.ReplaceAll(pattern, "{id}", strconv.Itoa(id))
	return filepath.Join(c.ImageDir, name)
}

// IDs returns all image identifiers of the corpus in ascending order.
func (c *CorpusConfig) IDs() []int {
	ids := make([]int, c.Size)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (empty = file backend)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Port           int      // listen port (default 8080)
	Host           string   // bind address (default 0.0.0.0)
	SessionSecret  string   // HMAC key for session cookies
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

type RetrievalConfig struct {
	PageSize int            `yaml:"page_size"`
	Methods  []MethodConfig `yaml:"methods"`
}

// MethodConfig declares one retrieval method.
type MethodConfig struct {
	Name       string   `yaml:"name"`
	Label      string   `yaml:"label"`
	Features   []string `yaml:"features"`
	Normalized bool     `yaml:"normalized"`
	Feedback   bool     `yaml:"feedback"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envString reads an environment variable, falling back to the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var retrieval RetrievalConfig
	if err := yaml.Unmarshal(retrievalYAML, &retrieval); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded retrieval.yaml: " + err.Error())
	}
	retrieval.PageSize = envInt("CBIR_PAGE_SIZE", retrieval.PageSize)
	if retrieval.PageSize <= 0 {
		retrieval.PageSize = constants.DefaultResultsPerPage
	}

	return &Config{
		Corpus: CorpusConfig{
			ImageDir:    envString("CBIR_IMAGE_DIR", "images"),
			PathPattern: envString("CBIR_PATH_PATTERN", constants.DefaultPathPattern),
			Size:        envInt("CBIR_CORPUS_SIZE", constants.DefaultCorpusSize),
			DataDir:     envString("CBIR_DATA_DIR", "data"),
			Workers:     envInt("CBIR_WORKERS", constants.WorkerPoolSize),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Retrieval: retrieval,
	}
}

// GetMethod returns the method configuration with the given name.
func (c *Config) GetMethod(name string) (MethodConfig, bool) {
	for _, m := range c.Retrieval.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodConfig{}, false
}
