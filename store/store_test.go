package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/recipekit/core"
)

func exerciseStore(t *testing.T, s core.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("不存在的 key 应返回 ErrStoreNotFound: %v", err)
	}
	if err := s.Set(ctx, "rec:a", []byte("1")); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	got, err := s.Get(ctx, "rec:a")
	if err != nil || string(got) != "1" {
		t.Fatalf("Get = (%q, %v)", got, err)
	}

	// 覆盖写入并带 TTL
	if err := s.Set(ctx, "rec:a", []byte("2"), 60); err != nil {
		t.Fatalf("带 TTL 的 Set 失败: %v", err)
	}
	if got, _ := s.Get(ctx, "rec:a"); string(got) != "2" {
		t.Fatalf("覆盖写入后 Get = %q", got)
	}

	if err := s.Delete(ctx, "rec:a"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if _, err := s.Get(ctx, "rec:a"); !core.IsStoreNotFound(err) {
		t.Fatalf("删除后应不存在: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)

	ctx := context.Background()
	m := s
	// 过期
	_ = m.Set(ctx, "short", []byte("x"), 1)
	m.mu.Lock()
	m.data["short"].ttl = ptr(time.Now().Add(-time.Second))
	m.mu.Unlock()
	if _, err := m.Get(ctx, "short"); !core.IsStoreNotFound(err) {
		t.Fatalf("过期 key 应不可读: %v", err)
	}

	// 有序集合：按分数降序，同分按成员名
	_ = m.ZAdd(ctx, "hot", 10, "b")
	_ = m.ZAdd(ctx, "hot", 30, "a")
	_ = m.ZAdd(ctx, "hot", 10, "c")
	members, _ := m.ZRange(ctx, "hot", 0, -1)
	if !reflect.DeepEqual(members, []string{"a", "b", "c"}) {
		t.Fatalf("ZRange = %v", members)
	}
	if members, _ := m.ZRange(ctx, "hot", 1, 1); !reflect.DeepEqual(members, []string{"b"}) {
		t.Fatalf("ZRange(1, 1) = %v", members)
	}
	_ = m.Delete(ctx, "hot")
	if members, _ := m.ZRange(ctx, "hot", 0, -1); len(members) != 0 {
		t.Fatalf("Delete 后有序集合应为空: %v", members)
	}

	// 重复 Close 安全
	if err := s.Close(); err != nil {
		t.Fatalf("Close 失败: %v", err)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore("", "recipekit:")
	if err != nil {
		t.Fatalf("打开 badger 失败: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadgerStore(dir, "")
	if err != nil {
		t.Fatalf("打开 badger 失败: %v", err)
	}
	_ = s.Set(context.Background(), "k", []byte("v"))
	_ = s.Close()

	s, err = NewBadgerStore(dir, "")
	if err != nil {
		t.Fatalf("重新打开 badger 失败: %v", err)
	}
	defer s.Close()
	if v, err := s.Get(context.Background(), "k"); err != nil || string(v) != "v" {
		t.Fatalf("重启后应可读: (%q, %v)", v, err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	if err != nil || s != nil {
		t.Fatalf("空 backend 应返回 nil: (%v, %v)", s, err)
	}
	s, err = Open(Config{Backend: "memory"})
	if err != nil || s.Name() != "memory" {
		t.Fatalf("memory backend = (%v, %v)", s, err)
	}
	_ = s.Close()

	if _, err := Open(Config{Backend: "etcd"}); err == nil {
		t.Fatal("未知 backend 应报错")
	}
	if _, err := Open(Config{Backend: "redis", Addr: "127.0.0.1:1"}); !core.IsUnavailable(err) {
		t.Fatalf("Redis 不可达应返回 UNAVAILABLE: %v", err)
	}
}
