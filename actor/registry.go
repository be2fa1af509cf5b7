package actor

import "sync"

// Registry 是 Actor 注册表，维护两个索引：按 ID 查找和按名称查找，
// 支持并发安全访问。它是 System 的路由基础。
type Registry struct {
	// mu 保护并发访问的读写锁
	mu sync.RWMutex
	// byID 按 Actor ID 索引的映射
	byID map[string]*Actor
	// byName 名称到 ID 的映射，支持按名称查找
	byName map[string]string
}

// NewRegistry 创建一个新的空注册表。
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Actor),
		byName: make(map[string]string),
	}
}

// Register 注册一个 Actor。名称非空时同时建立名称索引，
// 同名注册顶替旧条目。
func (r *Registry) Register(a *Actor) {
	r.mu.Lock()
	r.byID[a.id] = a
	if a.name != "" {
		r.byName[a.name] = a.id
	}
	r.mu.Unlock()
}

// Unregister 按 ID 移除 Actor，名称索引仍然指向它时一并移除。
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	if a, ok := r.byID[id]; ok {
		delete(r.byID, id)
		if a.name != "" && r.byName[a.name] == id {
			delete(r.byName, a.name)
		}
	}
	r.mu.Unlock()
}

// Get 按 ID 查找 Actor。
func (r *Registry) Get(id string) (*Actor, bool) {
	r.mu.RLock()
	a, ok := r.byID[id]
	r.mu.RUnlock()
	return a, ok
}

// GetByName 按名称查找 Actor：先由名称找到 ID，再取实例。
func (r *Registry) GetByName(name string) (*Actor, bool) {
	r.mu.RLock()
	id, ok := r.byName[name]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	a := r.byID[id]
	r.mu.RUnlock()
	return a, a != nil
}

// Snapshot 返回当前所有已注册 Actor 的快照。
// 可用于遍历所有 Actor 而不阻塞注册操作。
func (r *Registry) Snapshot() map[string]*Actor {
	r.mu.RLock()
	out := make(map[string]*Actor, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	r.mu.RUnlock()
	return out
}
