package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Manifest is the agent's published configuration: cache area versions, the
// critical precache set, request classification rules, and notification
// action routes. It is loaded from <data>/agent.yaml; a missing file yields
// the built-in defaults so a fresh install works with zero configuration.
type Manifest struct {
	// Versions are the published cache area version tokens. Bumping the
	// static version sheds every previously cached static payload on the
	// next activation.
	Versions struct {
		Static  string `yaml:"static"`
		Dynamic string `yaml:"dynamic"`
	} `yaml:"versions"`

	// Precache is the fixed set of critical static paths that must all be
	// cached for an install to succeed.
	Precache []string `yaml:"precache"`

	// CriticalPages are precached best-effort on demand (PRECACHE_CRITICAL),
	// unlike the install-time Precache set.
	CriticalPages []string `yaml:"critical_pages"`

	// APIPatterns are URL path prefixes classified as API data requests.
	APIPatterns []string `yaml:"api_patterns"`

	// StaticExtensions are file extensions classified as static assets.
	StaticExtensions []string `yaml:"static_extensions"`

	// OfflinePath is the document served when a navigation fails offline.
	OfflinePath string `yaml:"offline_path"`

	// ActionRoutes maps notification action identifiers to destination path
	// templates. Templates may reference {jobId} and {phone} from the
	// notification's data bag.
	ActionRoutes map[string]string `yaml:"action_routes"`
}

// DefaultManifest returns the built-in manifest used when no agent.yaml exists.
func DefaultManifest() *Manifest {
	m := &Manifest{
		Precache: []string{
			"/",
			"/offline.html",
			"/manifest.json",
			"/icons/icon-192.png",
			"/icons/icon-512.png",
		},
		CriticalPages: []string{
			"/dashboard",
			"/jobs",
			"/messages",
		},
		APIPatterns: []string{
			"/api/jobs",
			"/api/contractors",
			"/api/fleet",
			"/api/messages",
			"/api/invoices",
		},
		StaticExtensions: []string{
			".js", ".css", ".woff", ".woff2", ".ttf",
			".png", ".jpg", ".jpeg", ".svg", ".gif", ".webp", ".ico",
		},
		OfflinePath: "/offline.html",
		ActionRoutes: map[string]string{
			"track":    "/tracking?jobId={jobId}",
			"message":  "/messages?jobId={jobId}",
			"view":     "/jobs/{jobId}",
			"navigate": "/jobs/{jobId}/directions",
			"call":     "tel:{phone}",
			"review":   "/jobs/{jobId}/review",
			"invoice":  "/invoices?jobId={jobId}",
			"rebook":   "/book?rebookFrom={jobId}",
		},
	}
	m.Versions.Static = "2.0.0"
	m.Versions.Dynamic = "1.0.0"
	return m
}

// LoadManifest reads the manifest YAML at filePath. A missing file returns
// the defaults (not an error). Fields left empty in the file fall back to
// their defaults, so a manifest may override only what it needs.
func LoadManifest(filePath string) (*Manifest, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from the agent data dir
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading manifest %q: %w", filePath, err)
	}

	var loaded Manifest
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", filePath, err)
	}

	if loaded.Versions.Static != "" {
		m.Versions.Static = loaded.Versions.Static
	}
	if loaded.Versions.Dynamic != "" {
		m.Versions.Dynamic = loaded.Versions.Dynamic
	}
	if len(loaded.Precache) > 0 {
		m.Precache = loaded.Precache
	}
	if len(loaded.CriticalPages) > 0 {
		m.CriticalPages = loaded.CriticalPages
	}
	if len(loaded.APIPatterns) > 0 {
		m.APIPatterns = loaded.APIPatterns
	}
	if len(loaded.StaticExtensions) > 0 {
		m.StaticExtensions = loaded.StaticExtensions
	}
	if loaded.OfflinePath != "" {
		m.OfflinePath = loaded.OfflinePath
	}
	if len(loaded.ActionRoutes) > 0 {
		m.ActionRoutes = loaded.ActionRoutes
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validate checks that the published area version tokens parse as semver.
func (m *Manifest) validate() error {
	if _, err := semver.NewVersion(m.Versions.Static); err != nil {
		return fmt.Errorf("static area version %q: %w", m.Versions.Static, err)
	}
	if _, err := semver.NewVersion(m.Versions.Dynamic); err != nil {
		return fmt.Errorf("dynamic area version %q: %w", m.Versions.Dynamic, err)
	}
	return nil
}

// StaticArea returns the published static cache area name.
func (m *Manifest) StaticArea() string {
	return fmt.Sprintf("static-v%s", m.Versions.Static)
}

// DynamicArea returns the published dynamic cache area name.
func (m *Manifest) DynamicArea() string {
	return fmt.Sprintf("dynamic-v%s", m.Versions.Dynamic)
}

// PublishedAreas returns the set of area names the current manifest keeps
// alive; everything else is evicted on activation.
func (m *Manifest) PublishedAreas() []string {
	return []string{m.StaticArea(), m.DynamicArea()}
}
