package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"searchtrack/internal/config"
	sheetsconnector "searchtrack/internal/connectors/sheets"
	"searchtrack/internal/storage"
)

// Backend is the table store selected by STORE_BACKEND together with the
// local sqlite database that keeps the run log.
type Backend struct {
	Table storage.TableStore
	Runs  *storage.DB
	Name  string

	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Rewriter returns the table store as a Rewriter when it supports clear and prune.
func (b *Backend) Rewriter() (storage.Rewriter, error) {
	rw, ok := b.Table.(storage.Rewriter)
	if !ok {
		return nil, fmt.Errorf("store backend %s does not support rewriting", b.Name)
	}
	return rw, nil
}

func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	b := &Backend{Runs: db, closers: []func() error{db.Close}}

	name := strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	b.Name = name
	switch name {
	case config.BackendSQLite, "":
		b.Name = config.BackendSQLite
		b.Table = db
	case config.BackendXLSX:
		wb, err := storage.OpenWorkbook(cfg.XLSXPath, cfg.SheetName)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Table = wb
		b.closers = append(b.closers, wb.Close)
	case config.BackendSheets:
		st, err := sheetsconnector.NewStore(ctx, cfg)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Table = st
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
	return b, nil
}
