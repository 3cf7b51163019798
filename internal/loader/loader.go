package loader

import (
	"errors"
	"fmt"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/pkg/plugin"
)

// Registrar is the subset of the scheduler registry the loader writes to.
type Registrar interface {
	RegisterDetector(d plugin.Detector) error
	RegisterHandler(h plugin.Handler) error
}

// Build constructs and initialises the module an entry names. The returned
// module is either a plugin.Detector or a plugin.Handler.
func Build(e Entry) (plugin.Module, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var m plugin.Module
	switch e.Type {
	case TypeDetector:
		f, err := plugin.GetDetectorFactory(e.Kind)
		if err != nil {
			return nil, err
		}
		m = f()
	case TypeHandler:
		f, err := plugin.GetHandlerFactory(e.Kind)
		if err != nil {
			return nil, err
		}
		m = f()
	}

	if c, ok := m.(plugin.Configurable); ok {
		if err := c.Init(e.Options); err != nil {
			return nil, fmt.Errorf("%s %q: %w: %v", e.Type, e.Kind, core.ErrPluginInitFailed, err)
		}
	} else if len(e.Options) > 0 {
		return nil, fmt.Errorf("%s %q: %w: module takes no options", e.Type, e.Kind, core.ErrPluginInitFailed)
	}
	return m, nil
}

// Register builds e and adds it to r. A module that fails to register is
// closed if it holds resources.
func Register(r Registrar, e Entry) (plugin.Module, error) {
	m, err := Build(e)
	if err != nil {
		return nil, err
	}

	switch v := m.(type) {
	case plugin.Detector:
		err = r.RegisterDetector(v)
	case plugin.Handler:
		err = r.RegisterHandler(v)
	}
	if err != nil {
		Close(m)
		return nil, err
	}
	return m, nil
}

// Load registers every enabled manifest entry. A failing entry is logged
// and skipped so one bad module does not keep the others from loading; the
// joined errors are returned alongside the number of modules loaded.
func Load(r Registrar, m *Manifest) (int, error) {
	logger := log.GetLogger().WithField("component", "loader")

	loaded := 0
	var errs []error
	for _, e := range m.Modules {
		if !e.IsEnabled() {
			logger.WithField("kind", e.Kind).Debug("module disabled, skipping")
			continue
		}
		mod, err := Register(r, e)
		if err != nil {
			logger.WithError(err).WithField("kind", e.Kind).Error("failed to load module")
			errs = append(errs, err)
			continue
		}
		loaded++
		logger.WithFields(map[string]interface{}{
			"kind": e.Kind,
			"type": e.Type,
			"id":   mod.ID(),
		}).Info("module loaded")
	}
	return loaded, errors.Join(errs...)
}

// Close releases m's resources if it holds any. Failures are logged.
func Close(m plugin.Module) {
	if c, ok := m.(plugin.Closer); ok {
		if err := c.Close(); err != nil {
			log.GetLogger().WithError(err).WithField("id", m.ID()).Warn("failed to close module")
		}
	}
}
