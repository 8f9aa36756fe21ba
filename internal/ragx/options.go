package ragx

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragx/pkg/component/mongodb"
	llmopts "github.com/kart-io/ragx/pkg/options/llm"
	logopts "github.com/kart-io/ragx/pkg/options/logger"
	milvusopts "github.com/kart-io/ragx/pkg/options/milvus"
	minioopts "github.com/kart-io/ragx/pkg/options/minio"
	mysqlopts "github.com/kart-io/ragx/pkg/options/mysql"
	redisopts "github.com/kart-io/ragx/pkg/options/redis"
)

// ServerOptions HTTP 服务与管线的运行配置。
type ServerOptions struct {
	// Addr 监听地址。
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode gin 运行模式：debug、release 或 test。
	Mode string `json:"mode" mapstructure:"mode"`

	// ShutdownTimeout 优雅退出的最长等待时间。
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// Collection 向量库集合名。
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim 稠密向量维度，须与嵌入模型输出一致。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// EventStream 管线事件写入的 Redis Stream，空值用默认流。
	EventStream string `json:"event-stream" mapstructure:"event-stream"`

	// MarkerURL Marker PDF 转换服务地址，空值禁用。
	MarkerURL string `json:"marker-url" mapstructure:"marker-url"`

	// LayoutURL 版面检测服务地址，空值禁用。
	LayoutURL string `json:"layout-url" mapstructure:"layout-url"`

	// RemoteTimeout Marker 与版面检测请求超时。
	RemoteTimeout time.Duration `json:"remote-timeout" mapstructure:"remote-timeout"`

	// PoolSize 嵌入协程池大小。
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`
}

// NewServerOptions 返回带默认值的运行配置。
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Addr:            ":8080",
		Mode:            "release",
		ShutdownTimeout: 10 * time.Second,
		Collection:      "rag_chunks",
		EmbeddingDim:    1024,
		RemoteTimeout:   120 * time.Second,
		PoolSize:        8,
	}
}

// AddFlags registers server flags.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "server.addr", o.Addr, "HTTP listen address")
	fs.StringVar(&o.Mode, "server.mode", o.Mode, "Gin mode (debug|release|test)")
	fs.DurationVar(&o.ShutdownTimeout, "server.shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	fs.StringVar(&o.Collection, "server.collection", o.Collection, "Vector collection name")
	fs.IntVar(&o.EmbeddingDim, "server.embedding-dim", o.EmbeddingDim, "Dense embedding dimension")
	fs.StringVar(&o.EventStream, "server.event-stream", o.EventStream, "Redis stream for pipeline events")
	fs.StringVar(&o.MarkerURL, "server.marker-url", o.MarkerURL, "Marker PDF service base URL")
	fs.StringVar(&o.LayoutURL, "server.layout-url", o.LayoutURL, "Layout detection service base URL")
	fs.DurationVar(&o.RemoteTimeout, "server.remote-timeout", o.RemoteTimeout, "Timeout for marker/layout requests")
	fs.IntVar(&o.PoolSize, "server.pool-size", o.PoolSize, "Embedding worker pool size")
}

// Validate checks the server options.
func (o *ServerOptions) Validate() error {
	if o.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if o.Collection == "" {
		return fmt.Errorf("server.collection must not be empty")
	}
	if o.EmbeddingDim <= 0 {
		return fmt.Errorf("server.embedding-dim must be positive")
	}
	if o.PoolSize <= 0 {
		return fmt.Errorf("server.pool-size must be positive")
	}
	return nil
}

// Options 聚合全部组件配置。
type Options struct {
	Logger    *logopts.Options         `json:"log" mapstructure:"log"`
	Server    *ServerOptions           `json:"server" mapstructure:"server"`
	MySQL     *mysqlopts.Options       `json:"mysql" mapstructure:"mysql"`
	Mongo     *mongodb.Options         `json:"mongo" mapstructure:"mongo"`
	Redis     *redisopts.Options       `json:"redis" mapstructure:"redis"`
	Milvus    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	MinIO     *minioopts.Options       `json:"minio" mapstructure:"minio"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
}

// NewOptions 返回带默认值的全量配置。
func NewOptions() *Options {
	return &Options{
		Logger:    logopts.NewOptions(),
		Server:    NewServerOptions(),
		MySQL:     mysqlopts.NewOptions(),
		Mongo:     mongodb.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		MinIO:     minioopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
	}
}

// AddFlags registers every component flag set.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Logger.AddFlags(fs)
	o.Server.AddFlags(fs)
	o.MySQL.AddFlags(fs)
	o.Mongo.AddFlags(fs, "mongo.")
	o.Redis.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.MinIO.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
}

// Complete fills derived values.
func (o *Options) Complete() error {
	if err := o.Mongo.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	return o.Chat.Complete()
}

// Validate checks every component option set.
func (o *Options) Validate() error {
	if err := o.Logger.Validate(); err != nil {
		return err
	}
	if err := o.Server.Validate(); err != nil {
		return err
	}
	if err := o.MySQL.Validate(); err != nil {
		return err
	}
	if err := o.Mongo.Validate(); err != nil {
		return err
	}
	if err := o.Redis.Validate(); err != nil {
		return err
	}
	for _, err := range o.Milvus.Validate() {
		if err != nil {
			return err
		}
	}
	for _, err := range o.MinIO.Validate() {
		if err != nil {
			return err
		}
	}
	for _, err := range o.Embedding.Validate() {
		if err != nil {
			return err
		}
	}
	for _, err := range o.Chat.Validate() {
		if err != nil {
			return err
		}
	}
	return nil
}
