// Package ragx assembles and runs the RAG pipeline service.
package ragx

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/ragx/internal/events"
	"github.com/kart-io/ragx/internal/extract"
	"github.com/kart-io/ragx/internal/memory"
	"github.com/kart-io/ragx/internal/pkg/rag/evaluator"
	"github.com/kart-io/ragx/internal/ragx/biz"
	"github.com/kart-io/ragx/internal/ragx/handler"
	"github.com/kart-io/ragx/internal/ragx/router"
	"github.com/kart-io/ragx/internal/strategy"
	"github.com/kart-io/ragx/internal/vector"
	"github.com/kart-io/ragx/pkg/component/milvus"
	"github.com/kart-io/ragx/pkg/component/minio"
	"github.com/kart-io/ragx/pkg/component/mongodb"
	"github.com/kart-io/ragx/pkg/component/mysql"
	redisc "github.com/kart-io/ragx/pkg/component/redis"
	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/llm/resilience"

	// 注册 LLM 供应商工厂
	_ "github.com/kart-io/ragx/pkg/llm/ollama"
	_ "github.com/kart-io/ragx/pkg/llm/openai"
)

// NewCommand 构建 ragx 根命令。配置优先级：命令行 > 配置文件 > 默认值。
func NewCommand() *cobra.Command {
	opts := NewOptions()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "ragx",
		Short:         "Template-driven RAG pipeline service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			if err := v.Unmarshal(opts); err != nil {
				return fmt.Errorf("unmarshal config: %w", err)
			}
			return Run(opts)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to the configuration file")
	opts.AddFlags(cmd.Flags())
	return cmd
}

// Run 装配全部组件并启动 HTTP 服务，阻塞到退出信号。
func Run(opts *Options) error {
	if err := opts.Complete(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := opts.Logger.Init(); err != nil {
		return err
	}

	ctx := context.Background()

	mysqlClient, err := mysql.New(ctx, opts.MySQL)
	if err != nil {
		return fmt.Errorf("connect mysql: %w", err)
	}
	defer func() { _ = mysqlClient.Close() }()

	factory := strategy.NewFactory(mysqlClient.DB())
	if err := factory.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate strategy tables: %w", err)
	}

	mongoClient, err := mongodb.New(opts.Mongo)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() { _ = mongoClient.Close() }()

	redisClient, err := redisc.New(opts.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	milvusClient, err := milvus.GetOrNew(opts.Milvus)
	if err != nil {
		return fmt.Errorf("connect milvus: %w", err)
	}

	minioClient, err := minio.New(ctx, opts.MinIO)
	if err != nil {
		return fmt.Errorf("connect minio: %w", err)
	}

	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("build embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("build chat provider: %w", err)
	}

	// 嵌入侧包上重试熔断与 Redis 缓存
	var resilientEmbedder llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(embedder, nil, nil)
	resilientEmbedder = llm.NewCachedEmbeddingProvider(resilientEmbedder, redisClient.Client(), nil)

	pool, err := ants.NewPool(opts.Server.PoolSize)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	extractDeps := extract.Deps{Objects: minioClient}
	if opts.Server.MarkerURL != "" {
		extractDeps.Marker = extract.NewMarkerClient(opts.Server.MarkerURL, opts.Server.RemoteTimeout)
	}
	if opts.Server.LayoutURL != "" {
		extractDeps.Layout = extract.NewLayoutClient(opts.Server.LayoutURL, opts.Server.RemoteTimeout)
	}

	svc := biz.NewService(biz.ServiceConfig{
		Factory:    factory,
		Store:      vector.NewMilvusStore(milvusClient),
		Memory:     memory.NewManager(memory.NewMongoHistory(mongoClient.Collection(memory.MessageCollection))),
		Emitter:    events.NewEmitter(redisClient.Client(), opts.Server.EventStream),
		Embedder:   resilientEmbedder,
		Chat:       chat,
		Evaluator:  evaluator.New(chat, resilientEmbedder),
		Pool:       pool,
		Extract:    extractDeps,
		Collection: opts.Server.Collection,
		EmbedDim:   opts.Server.EmbeddingDim,
		Health: map[string]func() error{
			"mysql":   mysqlClient.Health(),
			"mongodb": mongoClient.Health(),
			"redis":   redisClient.Health(),
			"milvus":  pingWithTimeout(milvusClient.Ping),
			"minio":   pingWithTimeout(minioClient.Ping),
		},
	})

	logger.Infow("ragx service assembled",
		"collection", opts.Server.Collection,
		"embedding_provider", opts.Embedding.Provider,
		"chat_provider", opts.Chat.Provider,
	)

	engine := router.New(handler.New(svc), opts.Server.Mode)
	return serveHTTP(engine, opts.Server)
}

func pingWithTimeout(ping func(ctx context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ping(ctx)
	}
}
