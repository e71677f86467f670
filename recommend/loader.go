package recommend

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader 延迟且只构建一次 Engine。并发调用共享同一次加载；
// 加载失败不缓存，下一次调用会重试。
type Loader struct {
	opts   Options
	group  singleflight.Group
	engine atomic.Pointer[Engine]
	build  func(context.Context, Options) (*Engine, error)
}

func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts, build: New}
}

// Get 返回已加载的 Engine，必要时触发加载。
// 加载本身不随单个调用方的 ctx 取消；调用方取消时仅提前返回。
func (l *Loader) Get(ctx context.Context) (*Engine, error) {
	if e := l.engine.Load(); e != nil {
		return e, nil
	}
	ch := l.group.DoChan("engine", func() (interface{}, error) {
		if e := l.engine.Load(); e != nil {
			return e, nil
		}
		e, err := l.build(context.WithoutCancel(ctx), l.opts)
		if err != nil {
			return nil, err
		}
		l.engine.Store(e)
		return e, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Engine), nil
	}
}

// Ready 是否已加载完成。
func (l *Loader) Ready() bool { return l.engine.Load() != nil }
