package scraper

import (
	"os"
	"sync"
	"time"

	"unreplied/pkg/log"

	"gopkg.in/yaml.v3"
)

// Attributes names the data attributes the rendered client puts on each
// cast element.
type Attributes struct {
	Hash         string `yaml:"hash"`
	AuthorFID    string `yaml:"author_fid"`
	Username     string `yaml:"username"`
	DisplayName  string `yaml:"display_name"`
	ParentHash   string `yaml:"parent_hash"`
	ParentFID    string `yaml:"parent_fid"`
	TextTestID   string `yaml:"text_testid"`
	AvatarTestID string `yaml:"avatar_testid"`
	EmbedHash    string `yaml:"embed_hash"`
	EmbedFID     string `yaml:"embed_fid"`
}

// SelectorConfig holds the selectors for scraping conversation pages.
// Values can change at runtime when the backing file is edited.
type SelectorConfig struct {
	container string
	castItem  string
	attrs     Attributes

	mu          sync.RWMutex
	lastModTime time.Time
	filePath    string
	done        chan struct{}
	once        sync.Once
}

// rawConfig represents the YAML structure.
type rawConfig struct {
	Page struct {
		Container string `yaml:"container"`
		Cast      string `yaml:"cast"`
	} `yaml:"page"`
	Attributes Attributes `yaml:"attributes"`
}

// DefaultSelectors returns the selectors matching the current web client.
func DefaultSelectors() *SelectorConfig {
	return &SelectorConfig{
		container: "main[data-testid='conversation']",
		castItem:  "article[data-cast-hash]",
		attrs:     defaultAttributes(),
		done:      make(chan struct{}),
	}
}

func defaultAttributes() Attributes {
	return Attributes{
		Hash:         "data-cast-hash",
		AuthorFID:    "data-author-fid",
		Username:     "data-author-username",
		DisplayName:  "data-author-name",
		ParentHash:   "data-parent-hash",
		ParentFID:    "data-parent-fid",
		TextTestID:   "cast-text",
		AvatarTestID: "cast-avatar",
		EmbedHash:    "data-embed-cast-hash",
		EmbedFID:     "data-embed-cast-fid",
	}
}

// LoadSelectors loads selector configuration from a YAML file and starts a
// background goroutine that reloads it when the file changes.
func LoadSelectors(filePath string) (*SelectorConfig, error) {
	config := DefaultSelectors()
	config.filePath = filePath
	if err := config.reload(); err != nil {
		return nil, err
	}

	go config.watch(10 * time.Second)

	return config, nil
}

// reload reads the configuration from the file. Keys missing from the
// file keep their default.
func (c *SelectorConfig) reload() error {
	info, err := os.Stat(c.filePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	var raw rawConfig
	raw.Attributes = defaultAttributes()
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if raw.Page.Container != "" {
		c.container = raw.Page.Container
	}
	if raw.Page.Cast != "" {
		c.castItem = raw.Page.Cast
	}
	c.attrs = raw.Attributes
	c.lastModTime = info.ModTime()

	return nil
}

// watch polls the file modification time and reloads on change.
func (c *SelectorConfig) watch(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		info, err := os.Stat(c.filePath)
		if err != nil {
			continue
		}
		c.mu.RLock()
		changed := info.ModTime().After(c.lastModTime)
		c.mu.RUnlock()
		if !changed {
			continue
		}
		if err := c.reload(); err != nil {
			log.GlobalWarn("selectors reload failed", "path", c.filePath, "error", err)
			continue
		}
		log.GlobalInfo("selectors reloaded", "path", c.filePath)
	}
}

// Close stops the hot-reload watcher.
func (c *SelectorConfig) Close() {
	c.once.Do(func() { close(c.done) })
}

// GetContainer returns the conversation container selector (thread-safe).
func (c *SelectorConfig) GetContainer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.container
}

// GetCastItem returns the per-cast element selector (thread-safe).
func (c *SelectorConfig) GetCastItem() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.castItem
}

// GetAttributes returns a copy of the attribute names (thread-safe).
func (c *SelectorConfig) GetAttributes() Attributes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs
}
