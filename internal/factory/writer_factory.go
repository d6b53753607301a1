package factory

import (
	"fmt"
	"io"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/model"

	log "github.com/sirupsen/logrus"
)

// WriterFactory creates a writer from its configuration.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a writer type with its factory function.
func RegisterWriter(typ string, factory WriterFactory) {
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", typ))
	}
	registry[typ] = factory
}

// Registered reports whether a writer type is known.
func Registered(typ string) bool {
	_, ok := registry[typ]
	return ok
}

// CreateWriters creates every enabled writer of the configuration.
// Writers created before a failure are closed again.
func CreateWriters(defs []config.WriterDef) ([]model.Writer, error) {
	var writers []model.Writer
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating writer of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			CloseWriters(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		w, err := factory(def)
		if err != nil {
			CloseWriters(writers)
			return nil, fmt.Errorf("error creating writer '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}
	return writers, nil
}

// CloseWriters closes the writers that hold resources.
func CloseWriters(writers []model.Writer) {
	for _, w := range writers {
		c, ok := w.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			log.Printf("Error closing writer %s: %v", w.Name(), err)
		}
	}
}
