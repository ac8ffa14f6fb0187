// Package config loads the mediastore settings from defaults, an optional
// YAML file and MEDIASTORE_* environment variables, in increasing precedence.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/mdouchement/mediastore/internal/chunkstore"
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables, e.g. MEDIASTORE_STORE_CHUNK_SIZE.
const EnvPrefix = "MEDIASTORE"

type (
	// Config holds the mediastore settings.
	Config struct {
		Database string `mapstructure:"database"`
		Storage  string `mapstructure:"storage"`
		Server   Server `mapstructure:"server"`
		Store    Store  `mapstructure:"store"`
		Upload   Upload `mapstructure:"upload"`
		Sweep    Sweep  `mapstructure:"sweep"`
		// Kinds maps an upload kind (the route prefix) to its bucket.
		Kinds map[string]Kind `mapstructure:"kinds"`
	}

	// Server holds the HTTP listener settings.
	Server struct {
		Binding      string        `mapstructure:"binding"`
		Port         string        `mapstructure:"port"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	}

	// Store holds the chunked object store settings.
	Store struct {
		ChunkSize int `mapstructure:"chunk_size"`
		CacheSize int `mapstructure:"cache_size"`
	}

	// Upload holds the upload pipeline settings.
	Upload struct {
		CompensateOrphans bool `mapstructure:"compensate_orphans"`
	}

	// Sweep holds the reconciliation settings.
	Sweep struct {
		Specification string        `mapstructure:"specification"`
		Grace         time.Duration `mapstructure:"grace"`
	}

	// Kind is the bucket used by an upload kind.
	Kind struct {
		Bucket string   `mapstructure:"bucket"`
		Inline []string `mapstructure:"inline"`
	}
)

// New returns a viper instance populated with the defaults and bound to the environment.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("database", "mediastore.db")
	v.SetDefault("storage", "storage")
	v.SetDefault("server.binding", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", time.Minute)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("store.chunk_size", chunkstore.DefaultChunkSize)
	v.SetDefault("store.cache_size", chunkstore.DefaultCacheSize)
	v.SetDefault("upload.compensate_orphans", true)
	v.SetDefault("sweep.specification", "@every 30s")
	v.SetDefault("sweep.grace", time.Hour)

	buckets := media.DefaultBuckets()
	v.SetDefault("kinds", map[string]interface{}{
		"image": map[string]interface{}{"bucket": buckets[0].Name, "inline": buckets[0].Inline},
		"video": map[string]interface{}{"bucket": buckets[1].Name, "inline": buckets[1].Inline},
	})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file and decodes the settings.
// Without filename, ./mediastore.yml is used when present.
func Load(v *viper.Viper, filename string) (*Config, error) {
	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "could not read config")
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mediastore")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "could not read config")
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}

	return &c, c.Validate()
}

// Validate checks the settings consistency.
func (c *Config) Validate() error {
	if c.Store.ChunkSize <= 0 {
		return errors.Errorf("store.chunk_size must be positive: %d", c.Store.ChunkSize)
	}
	if len(c.Kinds) == 0 {
		return errors.New("at least one upload kind is required")
	}

	buckets := map[string]string{}
	for name, kind := range c.Kinds {
		if kind.Bucket == "" {
			return errors.Errorf("kinds.%s.bucket is required", name)
		}
		if other, ok := buckets[kind.Bucket]; ok {
			return errors.Errorf("bucket %s is used by kinds %s and %s", kind.Bucket, other, name)
		}
		buckets[kind.Bucket] = name
	}
	return nil
}

// Buckets returns the media buckets of all the kinds, sorted by name.
func (c *Config) Buckets() []media.Bucket {
	buckets := make([]media.Bucket, 0, len(c.Kinds))
	for _, kind := range c.Kinds {
		buckets = append(buckets, media.Bucket{
			Name:   kind.Bucket,
			Inline: kind.Inline,
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Name < buckets[j].Name
	})
	return buckets
}

// BucketsByKind returns the bucket name of each kind.
func (c *Config) BucketsByKind() map[string]string {
	m := make(map[string]string, len(c.Kinds))
	for name, kind := range c.Kinds {
		m[name] = kind.Bucket
	}
	return m
}
