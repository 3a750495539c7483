package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultCodeCategory is the UNSPSC prefix for transport planning services.
const DefaultCodeCategory = "V1.811022%"

// SearchConfig drives which contracts a refresh cycle fetches and keeps.
// A cycle reads it once and uses that value throughout.
type SearchConfig struct {
	CodeCategory      string   `yaml:"code_category" json:"codeCategory"`
	UseFilterKeywords bool     `yaml:"use_filter_keywords" json:"useFilterKeywords"`
	Keywords          []string `yaml:"keywords" json:"keywords"`
}

// DefaultSearchConfig returns the built-in transport search.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CodeCategory:      DefaultCodeCategory,
		UseFilterKeywords: true,
		Keywords: []string{
			"Estudio de demanda", "Plan Maestro de Movilidad", "Estudio de movilidad",
			"Plan infraestructura", "plan local de seguridad vial", "Plan intermodal",
			"Modelo de transporte", "Encuesta origen destino",
			"Toma informacion de campo", "Caracterizacion de vías",
			"Estudio de tránsito", "Diseño Señalización",
			"Planes Estratégicos de Seguridad Vial", "Auditorias de seguridad vial",
			"Capacitacion seguridad vial", "Plan de Manejo de Tránsito",
			"Diseño semafórico", "Cartografia", "Desarrollo web", "estrategia digital",
			"Diseño urbano", "Wayfinding", "diseño de información", "Estrategia",
			"políticas públicas", "Estudios de comportamiento",
			"Planificación de desarrollos", "Planificación de infraestructura",
			"Analítica espacial", "Recaudación", "gestión de tarifas",
		},
	}
}

// Clone returns a copy that shares no slices with s.
func (s SearchConfig) Clone() SearchConfig {
	out := s
	out.Keywords = append([]string(nil), s.Keywords...)
	return out
}

// Sanitize trims keywords, drops blanks and fills an empty category code.
func (s SearchConfig) Sanitize() SearchConfig {
	out := s.Clone()
	out.CodeCategory = strings.TrimSpace(out.CodeCategory)
	if out.CodeCategory == "" {
		out.CodeCategory = DefaultCodeCategory
	}
	kept := out.Keywords[:0]
	for _, kw := range out.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kept = append(kept, kw)
		}
	}
	out.Keywords = kept
	return out
}

// KeywordFilterActive reports whether rows must match a keyword to be kept.
func (s SearchConfig) KeywordFilterActive() bool {
	if !s.UseFilterKeywords {
		return false
	}
	for _, kw := range s.Keywords {
		if strings.TrimSpace(kw) != "" {
			return true
		}
	}
	return false
}

// SearchProvider hands out the current search configuration.
type SearchProvider interface {
	Current() SearchConfig
}

// StaticSearch is a SearchProvider that never changes.
type StaticSearch SearchConfig

func (s StaticSearch) Current() SearchConfig {
	return SearchConfig(s).Clone()
}

// FileSearchProvider persists the search configuration as YAML and re-reads it
// on every Current call so edits apply from the next cycle.
type FileSearchProvider struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last SearchConfig
}

// NewFileSearchProvider creates a provider backed by path.
func NewFileSearchProvider(path string, logger *slog.Logger) *FileSearchProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSearchProvider{path: path, logger: logger, last: DefaultSearchConfig()}
}

// Current returns the file contents, or the last good value when the file is
// missing or unreadable.
func (p *FileSearchProvider) Current() SearchConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := p.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("search config unreadable, using last known value", "path", p.path, "error", err)
		}
		return p.last.Clone()
	}
	p.last = cfg
	return cfg.Clone()
}

// Save validates and writes cfg, replacing the file atomically.
func (p *FileSearchProvider) Save(cfg SearchConfig) (SearchConfig, error) {
	cfg = cfg.Sanitize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return SearchConfig{}, fmt.Errorf("encode search config: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SearchConfig{}, fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return SearchConfig{}, fmt.Errorf("write search config: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return SearchConfig{}, fmt.Errorf("replace search config: %w", err)
	}
	p.last = cfg
	return cfg.Clone(), nil
}

func (p *FileSearchProvider) read() (SearchConfig, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return SearchConfig{}, err
	}
	var cfg SearchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SearchConfig{}, fmt.Errorf("parse %s: %w", p.path, err)
	}
	return cfg.Sanitize(), nil
}
