// Package app wires together configuration, the API client, the local store
// and the report service into a single Deps struct that commands receive at
// runtime.
package app

import (
	"fmt"

	"github.com/kebunops/opsreport/internal/config"
	"github.com/kebunops/opsreport/internal/opsapi"
	"github.com/kebunops/opsreport/internal/refdata"
	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil unless --store or --offline was given, or a command asked for
// it through RequireStore.
type Deps struct {
	Config  *config.Config
	Client  *opsapi.Client
	Store   *store.Store
	RefData *refdata.RefData
	Service *report.Service
}

// New builds a Deps from resolved config. The store is opened up front only
// when the client needs it as a payload cache.
func New(cfg *config.Config) (*Deps, error) {
	rd, err := refdata.Load(cfg.RefDataPath)
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, RefData: rd}

	mode := opsapi.CacheOff
	switch {
	case cfg.Offline:
		mode = opsapi.CacheOffline
	case cfg.Store:
		mode = opsapi.CacheWrite
	}
	opts := opsapi.Options{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.Token,
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.Rate,
		Attempts:   cfg.Retries,
		Debug:      cfg.Debug,
		CacheMode:  mode,
	}
	if mode != opsapi.CacheOff {
		s, err := d.RequireStore()
		if err != nil {
			return nil, err
		}
		opts.Cache = s
	}
	d.Client = opsapi.NewClient(opts)
	d.Service = report.NewService(d.Client, ServiceOptions(cfg, rd))
	return d, nil
}

// ServiceOptions derives report options from config and reference data.
func ServiceOptions(cfg *config.Config, rd *refdata.RefData) report.Options {
	units := map[string]string{}
	if rd != nil {
		for _, p := range rd.Pests {
			if p.ID != "" && p.Unit != "" {
				units[p.ID] = p.Unit
			}
		}
	}
	opts := report.Options{
		Policy:    cfg.ZeroBase,
		PestUnits: units,
		PageSize:  cfg.PageSize,
	}
	if rd != nil {
		opts.RefLocations = rd.Locations
	}
	return opts
}

// RequireStore opens the local store on first use.
func (d *Deps) RequireStore() (*store.Store, error) {
	if d.Store != nil {
		return d.Store, nil
	}
	if d.Config.DBPath == "" {
		return nil, fmt.Errorf("no database path configured (set %s or db_path)", config.EnvDBPath)
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, err
	}
	d.Store = s
	return s, nil
}

// Close releases the store, if open.
func (d *Deps) Close() {
	if d.Store != nil {
		_ = d.Store.Close()
		d.Store = nil
	}
}
