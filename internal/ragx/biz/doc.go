// Package biz 提供 RAG 流水线的业务逻辑层。
//
// 该包将流水线拆分为以下组件：
//   - Embedder: 稠密/稀疏向量生成
//   - Transformer: 查询改写（HyDE）
//   - Retriever: 语义/关键词/混合检索
//   - Reranker: 结果重排序
//   - PromptAssembler: 提示词组装
//   - Generator: 答案生成（流式与非流式）
//   - IngestPipeline / QueryPipeline: 组合以上组件的编排器
package biz
