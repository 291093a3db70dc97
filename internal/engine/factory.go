package engine

import (
	"botview/internal/interfaces"
	"botview/internal/store"
)

func New(cfg *store.Config, svc interfaces.Service, opts ...Option) (interfaces.Engine, error) {
	e, err := newEngine(cfg, svc, opts...)
	if err != nil {
		return nil, err
	}
	return e, nil
}
