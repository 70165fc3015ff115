// FILE: lixenwraith/logpipe/compat/builder.go
package compat

import (
	"fmt"

	"github.com/lixenwraith/logpipe"
)

// Builder creates framework adapters that share one Engine.
// It uses an existing engine or creates one from a Config.
type Builder struct {
	engine *logpipe.Engine
	cfg    *logpipe.Config
	err    error
}

// NewBuilder creates a new adapter builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithEngine specifies an existing, initialized engine for the adapters.
// If this is set WithConfig is ignored.
func (b *Builder) WithEngine(e *logpipe.Engine) *Builder {
	if e == nil {
		b.err = fmt.Errorf("logpipe/compat: provided engine cannot be nil")
		return b
	}
	b.engine = e
	return b
}

// WithConfig provides a configuration for a new engine, used only without WithEngine.
// Without either, an engine with a single console writer is created.
func (b *Builder) WithConfig(cfg *logpipe.Config) *Builder {
	b.cfg = cfg
	return b
}

// getEngine resolves the engine to be used, creating and initializing one if necessary
func (b *Builder) getEngine() (*logpipe.Engine, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.engine != nil {
		return b.engine, nil
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = logpipe.DefaultConfig()
		cfg.Writers["console"] = logpipe.WriterConfig{Type: "console"}
	}

	e := logpipe.NewEngine(cfg)
	if err := e.Init(); err != nil {
		return nil, err
	}

	// Cache the new engine for subsequent builds with this builder
	b.engine = e
	return e, nil
}

// BuildGnet creates a gnet adapter
func (b *Builder) BuildGnet(opts ...GnetOption) (*GnetAdapter, error) {
	e, err := b.getEngine()
	if err != nil {
		return nil, err
	}
	return NewGnetAdapter(e, opts...), nil
}

// BuildStructuredGnet creates a gnet adapter that moves "key=%v" pairs into entry context
func (b *Builder) BuildStructuredGnet(opts ...GnetOption) (*StructuredGnetAdapter, error) {
	e, err := b.getEngine()
	if err != nil {
		return nil, err
	}
	return NewStructuredGnetAdapter(e, opts...), nil
}

// BuildFastHTTP creates a fasthttp adapter
func (b *Builder) BuildFastHTTP(opts ...FastHTTPOption) (*FastHTTPAdapter, error) {
	e, err := b.getEngine()
	if err != nil {
		return nil, err
	}
	return NewFastHTTPAdapter(e, opts...), nil
}

// BuildFiber creates a Fiber v2.54.x adapter
func (b *Builder) BuildFiber(opts ...FiberOption) (*FiberAdapter, error) {
	e, err := b.getEngine()
	if err != nil {
		return nil, err
	}
	return NewFiberAdapter(e, opts...), nil
}

// GetEngine returns the underlying engine, creating it if necessary
func (b *Builder) GetEngine() (*logpipe.Engine, error) {
	return b.getEngine()
}

// --- Example Usage ---
//
//	// 1. Create the application's engine
//	engine, err := logpipe.NewBuilder().
//		WritingThread(true).
//		Writer("app", "rolling file", props.Map{"file": "logs/app_{count}.log", "policies": "daily"}).
//		Writer("net", "file", props.Map{"file": "logs/net.log", "tag": "gnet"}).
//		Build()
//	if err != nil { /* handle error */ }
//	defer engine.Shutdown(0)
//
//	// 2. Build adapters on the shared engine
//	builder := compat.NewBuilder().WithEngine(engine)
//	gnetLogger, _ := builder.BuildGnet()
//	fasthttpLogger, _ := builder.BuildFastHTTP()
//
//	// 3. Hand them to the frameworks
//	go gnet.Run(events, "tcp://:9000", gnet.WithLogger(gnetLogger))
//	server := &fasthttp.Server{Handler: handler, Logger: fasthttpLogger}
//	go server.ListenAndServe(":8080")
