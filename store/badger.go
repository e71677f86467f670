package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/logging"
)

// BadgerStore 是基于 Badger 的本地持久化 Store，单机部署时让结果缓存跨进程重启保留。
// path 为空时以内存模式运行。
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(path, prefix string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{l: logging.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open badger", err)
	}
	return &BadgerStore{db: db, prefix: prefix}, nil
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) key(k string) []byte { return []byte(b.prefix + k) }

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(b.key(key), value, ttl))
	})
}

func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func newEntry(key, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry(key, value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

// badgerLogger 把 Badger 日志转到 zerolog。
type badgerLogger struct {
	l zerolog.Logger
}

func (bl badgerLogger) Errorf(f string, v ...interface{})   { bl.l.Error().Msg(trim(f, v)) }
func (bl badgerLogger) Warningf(f string, v ...interface{}) { bl.l.Warn().Msg(trim(f, v)) }
func (bl badgerLogger) Infof(f string, v ...interface{})    { bl.l.Debug().Msg(trim(f, v)) }
func (bl badgerLogger) Debugf(f string, v ...interface{})   { bl.l.Trace().Msg(trim(f, v)) }

func trim(f string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(f, v...))
}

var _ core.Store = (*BadgerStore)(nil)
