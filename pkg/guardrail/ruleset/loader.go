package ruleset

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/infra/prometheus"
)

// Loader reads, caches and hot-reloads the guardrail rule file. Reload is
// checked synchronously on every Resolve call by comparing the file's
// modification time; there is no background watcher. The parsed document
// is swapped wholesale behind the lock, so concurrent readers see either
// the old rules or the new ones, never a mix.
type Loader struct {
	path   string
	logger *logrus.Logger

	mu    sync.RWMutex
	doc   *document
	mtime time.Time
}

// NewLoader parses the rule file once and fails hard if it cannot: the
// guard must never start enforcing undefined rules. Later reload failures
// are recoverable and keep the last valid rules.
func NewLoader(path string, logger *logrus.Logger) (*Loader, error) {
	l := &Loader{
		path:   path,
		logger: logger,
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &guardrail.ConfigError{Path: path, Err: err}
	}
	doc, err := l.parse()
	if err != nil {
		return nil, &guardrail.ConfigError{Path: path, Err: err}
	}

	l.doc = doc
	l.mtime = info.ModTime()
	logger.WithFields(logrus.Fields{
		"path":     path,
		"profiles": len(doc.Profiles),
	}).Info("guardrail rules loaded")

	return l, nil
}

// Resolve returns the merged config for the named profile: defaults with
// the profile's override block (if any) applied per field. An empty or
// unknown profile name falls back to defaults only.
func (l *Loader) Resolve(profileName string) (guardrail.Config, error) {
	l.reloadIfChanged()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.resolve(profileName), nil
}

// Path returns the rule file location backing this loader.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) reloadIfChanged() {
	info, err := os.Stat(l.path)
	if err != nil {
		prometheus.RuleReloadFailures.Inc()
		l.logger.WithError(err).WithField("path", l.path).
			Error("failed to stat guardrail rules, keeping previous rules")
		return
	}

	l.mu.RLock()
	unchanged := !info.ModTime().After(l.mtime)
	l.mu.RUnlock()
	if unchanged {
		return
	}

	doc, err := l.parse()
	if err != nil {
		prometheus.RuleReloadFailures.Inc()
		l.logger.WithError(err).WithField("path", l.path).
			Error("failed to reload guardrail rules, keeping previous rules")
		return
	}

	l.mu.Lock()
	l.doc = doc
	l.mtime = info.ModTime()
	l.mu.Unlock()

	prometheus.RuleReloads.Inc()
	l.logger.WithField("path", l.path).Info("guardrail rules reloaded")
}

func (l *Loader) parse() (*document, error) {
	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, err
	}
	doc.buildResolved()
	return &doc, nil
}
