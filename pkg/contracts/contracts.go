package contracts

import (
	"context"

	"github.com/careflow/ingest/pkg/utils"
)

type SourceOption struct {
	Delimiter rune
}

// Option defines a function type for configuring a source adapter.
type Option func(*SourceOption)

// WithDelimiter overrides the sniffed field delimiter for the source.
func WithDelimiter(d rune) Option {
	return func(o *SourceOption) {
		o.Delimiter = d
	}
}

type Source interface {
	Setup(ctx context.Context) error
	Extract(ctx context.Context, opts ...Option) (<-chan utils.Record, error)
	Close() error
}

type Loader interface {
	Setup(ctx context.Context) error
	StoreBatch(ctx context.Context, batch []utils.Record) error
	StoreSingle(ctx context.Context, rec utils.Record) error
	Close() error
}

type Mapper interface {
	Name() string
	Map(ctx context.Context, rec utils.Record) (utils.Record, error)
}

type Transformer interface {
	Name() string
	Transform(ctx context.Context, rec utils.Record) (utils.Record, error)
}
