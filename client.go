package pocodynamo

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/pocodynamo/pocodynamo/internal/codec"
)

// Config holds the request engine's tunables, all with documented
// zero-value-safe defaults (spec §4.4). It's shaped like the teacher's
// queryOptions/getOpts/batchOpts: a plain struct mutated only through
// functional options, never exposed for direct field access once a
// Client exists.
type Config struct {
	// ConsistentRead is the default for base-table reads. Reads against a
	// global secondary index are always best-effort regardless of this
	// setting, since DynamoDB itself doesn't support consistent reads on
	// GSIs.
	ConsistentRead bool
	// ReadCapacity / WriteCapacity are the provisioned throughput used
	// when creating a table that doesn't declare its own.
	ReadCapacity  int64
	WriteCapacity int64
	// PollTableStatus is the interval between DescribeTable polls while
	// waiting for a table to become Active or to finish deleting.
	PollTableStatus time.Duration
	// MaxRetryOnExceptionTimeout caps the total time exec() spends
	// retrying a single call.
	MaxRetryOnExceptionTimeout time.Duration
	// PagingLimit is the default per-request page size for Query/Scan.
	PagingLimit int32
	// ScanIndexForward is the default sort order for Query.
	ScanIndexForward bool
	// RetryableErrorCodes lists the store error codes exec() retries.
	RetryableErrorCodes []string
	// Backoff computes the sleep before retry attempt n.
	Backoff BackoffFunc

	hooks codec.Hooks
}

func defaultConfig() Config {
	return Config{
		ConsistentRead:             true,
		ReadCapacity:               10,
		WriteCapacity:              5,
		PollTableStatus:            2 * time.Second,
		MaxRetryOnExceptionTimeout: 60 * time.Second,
		PagingLimit:                1000,
		ScanIndexForward:           true,
		RetryableErrorCodes:        append([]string(nil), defaultRetryableCodes...),
		Backoff:                    DefaultBackoff,
	}
}

// ClientOption configures a Client at construction or through With.
type ClientOption func(*Config)

func WithConsistentRead(consistent bool) ClientOption {
	return func(c *Config) { c.ConsistentRead = consistent }
}

func WithReadCapacity(units int64) ClientOption {
	return func(c *Config) { c.ReadCapacity = units }
}

func WithWriteCapacity(units int64) ClientOption {
	return func(c *Config) { c.WriteCapacity = units }
}

func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Config) { c.PollTableStatus = d }
}

func WithRetryTimeout(d time.Duration) ClientOption {
	return func(c *Config) { c.MaxRetryOnExceptionTimeout = d }
}

func WithPagingLimit(n int32) ClientOption {
	return func(c *Config) { c.PagingLimit = n }
}

func WithScanIndexForward(forward bool) ClientOption {
	return func(c *Config) { c.ScanIndexForward = forward }
}

func WithRetryableErrorCodes(codes ...string) ClientOption {
	return func(c *Config) { c.RetryableErrorCodes = codes }
}

func WithBackoff(fn BackoffFunc) ClientOption {
	return func(c *Config) { c.Backoff = fn }
}

// WithCodecHooks installs pluggable field-name/dbType/encode/decode/
// convert overrides (spec §4.2 "Pluggability").
func WithCodecHooks(hooks codec.Hooks) ClientOption {
	return func(c *Config) { c.hooks = hooks }
}

// TableNamer lets a registered type override the physical table name a
// particular instance is stored under, for single-table-design callers
// registering more than one Go type against the same table (§3
// SUPPLEMENTED FEATURES). Only PutItem and PutItemIf consult it; the
// batch writes (PutItems, PutRelated), reads, deletes, queries and
// Increment always use the registered table name.
type TableNamer interface {
	TableName() string
}

// Client is the request engine: it owns the SDK handle, the shared
// process-wide metadata registry (via internal/schema) and the codec
// hooks, and every Get/Put/Delete/Query/Scan/Increment operation in this
// package takes one as its first non-context argument.
type Client struct {
	ddb    DynamoAPI
	cfg    Config
	hooks  codec.Hooks
	closed bool
}

// New wraps an existing DynamoAPI implementation (typically
// *dynamodb.Client, or internal/fake's in-memory store in tests).
func New(ddb DynamoAPI, opts ...ClientOption) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{ddb: ddb, cfg: cfg, hooks: cfg.hooks}
}

// NewFromEnv loads the default AWS configuration (environment, shared
// config files, EC2/ECS metadata) the way the teacher's dynamodb/cmd/ddb
// does, and builds a Client around it.
func NewFromEnv(ctx context.Context, opts ...ClientOption) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(awsCfg), opts...), nil
}

// With returns an independent Client configured with the given
// overrides; the underlying SDK handle, metadata registry and codec
// hooks are shared, matching spec §4.4's clientWith.
func (c *Client) With(opts ...ClientOption) *Client {
	cfg := c.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{ddb: c.ddb, cfg: cfg, hooks: c.hooks}
}

// Close disposes the client. Subsequent operations on it return an
// error; the underlying registry and any sibling Client from With are
// unaffected.
func (c *Client) Close() error {
	c.closed = true
	return nil
}

func (c *Client) checkOpen() error {
	if c.closed {
		return fmt.Errorf("pocodynamo: client is closed")
	}
	return nil
}
