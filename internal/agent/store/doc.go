// Package store 提供 Agent 服务的向量存储层。
//
// 该包定义了向量索引的接口抽象和具体实现：
// 进程内的平面 L2 索引（支持双工件持久化）以及 Milvus 后端。
package store
