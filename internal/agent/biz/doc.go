// Package biz 提供 Agent 服务的业务逻辑层。
//
// 该包实现检索引擎（文档加载、分块、嵌入、向量索引）、
// 会话记忆、工具注册表以及查询编排器。
package biz
