package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Strategy service errors (AA=21)
var (
	// ErrInvalidStrategy indicates an unknown or inactive strategy code.
	ErrInvalidStrategy = Register(New(MakeCode(ServiceStrategy, CategoryRequest, 1), "INVALID_STRATEGY",
		http.StatusBadRequest, codes.InvalidArgument, "Unknown or inactive strategy", "策略不存在或未启用"))

	// ErrWrongStrategyCode indicates a strategy code bound to the wrong
	// pipeline stage, e.g. a chunking code passed as an embedder.
	ErrWrongStrategyCode = Register(New(MakeCode(ServiceStrategy, CategoryRequest, 2), "WRONG_STRATEGY_CODE",
		http.StatusBadRequest, codes.InvalidArgument, "Strategy code bound to wrong pipeline stage", "策略代码与流水线阶段不匹配"))

	// ErrMissingRequiredStrategy indicates a template is missing a strategy
	// its kind requires, e.g. an ingest template without a sparse embedding.
	ErrMissingRequiredStrategy = Register(New(MakeCode(ServiceStrategy, CategoryRequest, 3), "MISSING_REQUIRED_STRATEGY",
		http.StatusBadRequest, codes.InvalidArgument, "Template is missing a required strategy", "模板缺少必需的策略"))

	// ErrTemplateNotFound indicates the referenced template does not exist.
	ErrTemplateNotFound = Register(New(MakeCode(ServiceStrategy, CategoryResource, 1), "NOT_FOUND",
		http.StatusNotFound, codes.NotFound, "Template not found", "模板不存在"))

	// ErrTemplateConflict indicates a duplicate template code.
	ErrTemplateConflict = Register(New(MakeCode(ServiceStrategy, CategoryConflict, 1), "CONFLICT",
		http.StatusConflict, codes.AlreadyExists, "Template code already exists", "模板代码已存在"))
)

// Pipeline service errors (AA=20)
var (
	// ErrUnsupportedFormat indicates a document format no extractor accepts.
	ErrUnsupportedFormat = Register(New(MakeCode(ServicePipeline, CategoryRequest, 1), "UNSUPPORTED_FORMAT",
		http.StatusBadRequest, codes.InvalidArgument, "Unsupported document format", "不支持的文档格式"))

	// ErrMissingCredential indicates a provider call without a usable credential.
	ErrMissingCredential = Register(New(MakeCode(ServicePipeline, CategoryRequest, 2), "MISSING_CREDENTIAL",
		http.StatusBadRequest, codes.FailedPrecondition, "No credential configured for provider", "未配置提供商凭证"))

	// ErrExtractFailed indicates document extraction failed.
	ErrExtractFailed = Register(New(MakeCode(ServicePipeline, CategoryInternal, 1), "INTERNAL_ERROR",
		http.StatusInternalServerError, codes.Internal, "Document extraction failed", "文档解析失败"))

	// ErrEmbedFailed indicates embedding generation failed.
	ErrEmbedFailed = Register(New(MakeCode(ServicePipeline, CategoryInternal, 2), "INTERNAL_ERROR",
		http.StatusInternalServerError, codes.Internal, "Embedding generation failed", "向量生成失败"))

	// ErrVectorStore indicates a vector store operation failed.
	ErrVectorStore = Register(New(MakeCode(ServicePipeline, CategoryInternal, 3), "INTERNAL_ERROR",
		http.StatusInternalServerError, codes.Internal, "Vector store operation failed", "向量库操作失败"))

	// ErrGenerateFailed indicates answer generation failed before any token
	// was streamed.
	ErrGenerateFailed = Register(New(MakeCode(ServicePipeline, CategoryInternal, 4), "INTERNAL_ERROR",
		http.StatusInternalServerError, codes.Internal, "Answer generation failed", "回答生成失败"))
)
