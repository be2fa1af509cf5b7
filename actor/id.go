package actor

import "github.com/google/uuid"

// NewActorID 生成全局唯一的 Actor 标识。
func NewActorID() string { return uuid.NewString() }

// NewChainID 生成新的调用链关联 ID。
// 运行时自带的进程内关联 ID 提供者：同步调用继承调用方任务当前
// 活跃的调用链，链头（没有活跃调用链时）和每次异步调用都从这里
// 取新 ID。
func NewChainID() uuid.UUID { return uuid.New() }
