package remote

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

// Pool shares one client connection per target among remote tools.
type Pool struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	dialOpts []grpc.DialOption
	logger   *zap.Logger
}

// NewPool creates a pool. Without options connections are plaintext with
// client keepalives.
func NewPool(logger *zap.Logger, opts ...grpc.DialOption) *Pool {
	if len(opts) == 0 {
		opts = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                30 * time.Second,
				Timeout:             5 * time.Second,
				PermitWithoutStream: true,
			}),
		}
	}
	return &Pool{
		conns:    make(map[string]*grpc.ClientConn),
		dialOpts: opts,
		logger:   logger,
	}
}

// Conn returns the connection for target, creating it on first use.
// Creation does not block; the connection is established lazily.
func (p *Pool) Conn(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[target]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(target, p.dialOpts...)
	if err != nil {
		return nil, err
	}
	p.conns[target] = c
	p.logger.Info("remote tool connection created", zap.String("target", target))
	return c, nil
}

// Tools builds a tool per declaration. Invalid declarations are logged and
// skipped.
func (p *Pool) Tools(decls []config.RemoteTool, v *validation.SchemaValidator, timeout time.Duration) []*tool.Tool {
	out := make([]*tool.Tool, 0, len(decls))
	for _, d := range decls {
		conn, err := p.Conn(d.Target)
		if err != nil {
			p.logger.Warn("skipping remote tool: connection failed",
				zap.String("tool_id", d.ID),
				zap.String("target", d.Target),
				zap.Error(err),
			)
			continue
		}
		t, err := NewTool(d, conn, v, timeout, p.logger)
		if err != nil {
			p.logger.Warn("skipping remote tool: invalid declaration",
				zap.String("tool_id", d.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, t)
	}
	return out
}

// Close closes every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for target, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.conns, target)
	}
	return errors.Join(errs...)
}
