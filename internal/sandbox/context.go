package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dop251/goja"

	"modelforge/internal/config"
	"modelforge/internal/geometry"
	"modelforge/internal/logging"
	"modelforge/internal/services"
)

// Options configures a sandbox context.
type Options struct {
	TrustedLibrary string
	Origin         string
	BundlePrefix   string
	BundleDir      string
	AllowRemote    bool
	FetchTimeout   time.Duration
	MaxModuleBytes int64
	// Fetcher replaces the default bundle-then-HTTP fetch chain.
	Fetcher Fetcher
	Logger  *slog.Logger
}

// OptionsFromConfig maps the [sandbox] config section.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		TrustedLibrary: cfg.Sandbox.TrustedLibrary,
		Origin:         cfg.Sandbox.Origin,
		BundlePrefix:   cfg.Sandbox.BundlePrefix,
		BundleDir:      cfg.Sandbox.BundleDir,
		AllowRemote:    cfg.Sandbox.AllowRemote,
		FetchTimeout:   cfg.FetchTimeout(),
		MaxModuleBytes: cfg.Sandbox.MaxModuleBytes,
		Logger:         logger,
	}
}

// Context is one isolated script runtime together with its module cache.
// A Context is not safe for concurrent use; only Interrupt may be called
// from another goroutine.
type Context struct {
	rt           *goja.Runtime
	cache        *ModuleCache
	resolver     *Resolver
	fetcher      Fetcher
	library      *goja.Object
	logger       *slog.Logger
	fetchTimeout time.Duration

	evalCtx    context.Context
	hostErrors map[*goja.Object]error
}

const topLevelName = "main.js"

// NewContext builds a fresh runtime with an empty module cache.
func NewContext(opts Options) (*Context, error) {
	if opts.TrustedLibrary == "" {
		opts.TrustedLibrary = "@jscad/modeling"
	}
	if opts.BundlePrefix == "" {
		opts.BundlePrefix = "/libs/"
	}
	if opts.Origin == "" {
		opts.Origin = "http://localhost:3000"
	}
	resolver, err := NewResolver(opts.TrustedLibrary, opts.Origin, opts.BundlePrefix, opts.AllowRemote)
	if err != nil {
		return nil, err
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = &BundleFetcher{
			Dir:      opts.BundleDir,
			Resolver: resolver,
			MaxBytes: opts.MaxModuleBytes,
			Next:     &HTTPFetcher{Client: &http.Client{}, MaxBytes: opts.MaxModuleBytes},
		}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	rt := goja.New()
	c := &Context{
		rt:           rt,
		cache:        NewModuleCache(),
		resolver:     resolver,
		fetcher:      fetcher,
		library:      newLibrary(rt),
		logger:       logging.NewComponentLogger(opts.Logger, "sandbox"),
		fetchTimeout: opts.FetchTimeout,
		evalCtx:      context.Background(),
		hostErrors:   make(map[*goja.Object]error),
	}
	if err := c.installGlobals(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) installGlobals() error {
	console := c.rt.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		lvl := level
		if err := console.Set(lvl, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			c.logger.Debug("script console",
				logging.String("console_level", lvl),
				logging.String("message", strings.Join(parts, " ")),
			)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return c.rt.Set("console", console)
}

// Cache exposes the module cache owned by this context.
func (c *Context) Cache() *ModuleCache { return c.cache }

// Interrupt aborts whatever script is running. Safe from any goroutine.
func (c *Context) Interrupt(reason any) { c.rt.Interrupt(reason) }

// Require loads spec as top-level code would.
func (c *Context) Require(ctx context.Context, spec string) (goja.Value, error) {
	c.evalCtx = ctx
	return c.load(spec, "")
}

func (c *Context) load(spec, parent string) (goja.Value, error) {
	s, err := c.resolver.Resolve(spec, parent)
	if err != nil {
		return nil, err
	}
	if s.Kind == SpecifierTrusted {
		return c.trusted(s)
	}
	if exports, ok := c.cache.Lookup(s.URL); ok {
		return exports, nil
	}
	if err := c.cache.begin(s.URL); err != nil {
		return nil, err
	}
	resolved := false
	defer func() {
		if !resolved {
			c.cache.abandon(s.URL)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(c.evalCtx, c.fetchTimeout)
	src, err := c.fetcher.Fetch(fetchCtx, s.URL)
	cancel()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("module loaded", logging.String("url", s.URL), logging.String("kind", s.Kind.String()))

	exports, err := c.run(s.URL, s.URL, src)
	if err != nil {
		return nil, err
	}
	c.cache.finish(s.URL, exports)
	resolved = true
	return exports, nil
}

func (c *Context) trusted(s Specifier) (goja.Value, error) {
	var current goja.Value = c.library
	for i, segment := range s.Path {
		obj, ok := current.(*goja.Object)
		if !ok {
			return nil, c.unknownTrusted(s, i)
		}
		next := obj.Get(segment)
		if next == nil || goja.IsUndefined(next) {
			return nil, c.unknownTrusted(s, i)
		}
		current = next
	}
	return current, nil
}

func (c *Context) unknownTrusted(s Specifier, i int) error {
	return services.Wrap(services.ErrValidation, "sandbox", "require",
		fmt.Sprintf("%q has no member %q", s.Raw, strings.Join(s.Path[:i+1], ".")), nil)
}

// run executes src as a function body with the loader bindings injected.
// parent is the URL relative specifiers resolve against.
func (c *Context) run(parent, name, src string) (goja.Value, error) {
	prog, err := goja.Compile(name, "(function (require, module, exports, include, window) {"+src+"\n})", false)
	if err != nil {
		return nil, services.Wrap(services.ErrEvaluation, "sandbox", "compile", name, err)
	}
	fnValue, err := c.rt.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, services.Wrap(services.ErrEvaluation, "sandbox", "compile", name+" did not produce a function", nil)
	}
	module := c.rt.NewObject()
	exports := c.rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	_, err = fn(goja.Undefined(),
		c.rt.ToValue(c.requireFunc(parent)),
		module,
		exports,
		c.rt.ToValue(c.includeFunc(parent)),
		c.rt.GlobalObject(),
	)
	if err != nil {
		return nil, err
	}
	return module.Get("exports"), nil
}

func (c *Context) requireFunc(parent string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v, err := c.load(call.Argument(0).String(), parent)
		if err != nil {
			c.throw(err)
		}
		return v
	}
}

// includeFunc loads a module and copies its exports onto the global scope.
func (c *Context) includeFunc(parent string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v, err := c.load(call.Argument(0).String(), parent)
		if err != nil {
			c.throw(err)
		}
		if obj, ok := v.(*goja.Object); ok {
			global := c.rt.GlobalObject()
			for _, key := range obj.Keys() {
				_ = global.Set(key, obj.Get(key))
			}
		}
		return v
	}
}

// throw raises err inside the running script. Loader errors are remembered
// so the boundary can report their kind after the exception unwinds.
func (c *Context) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		c.rt.Interrupt(interrupted.Value())
	}
	obj := c.rt.NewGoError(err)
	c.hostErrors[obj] = err
	panic(obj)
}

// Evaluate runs top-level code, reports exported parameter definitions and
// calls main with params. Every failure comes back as an ErrorInfo.
func (c *Context) Evaluate(ctx context.Context, code string, params map[string]any) (eval Evaluation, info *ErrorInfo) {
	start := time.Now()
	c.evalCtx = ctx
	clear(c.hostErrors)
	defer func() {
		if r := recover(); r != nil {
			info = &ErrorInfo{
				Kind:    services.KindEvaluation,
				Message: fmt.Sprintf("sandbox panic: %v", r),
				Stack:   string(debug.Stack()),
			}
		}
	}()

	exportsValue, err := c.run("", topLevelName, code)
	if err != nil {
		return eval, c.errorInfo(err)
	}
	exports, ok := exportsValue.(*goja.Object)
	if !ok {
		return eval, &ErrorInfo{Kind: services.KindEvaluation, Message: "module.exports is not an object"}
	}

	if defsFn, ok := goja.AssertFunction(exports.Get("getParameterDefinitions")); ok {
		defs, err := defsFn(exports)
		if err != nil {
			return eval, c.errorInfo(err)
		}
		eval.HasDefinitions = true
		eval.ParameterDefinitions = defs.Export()
	}

	mainFn, ok := goja.AssertFunction(exports.Get("main"))
	if !ok {
		return eval, &ErrorInfo{Kind: services.KindEvaluation, Message: "code does not export a main function"}
	}
	if params == nil {
		params = map[string]any{}
	}
	result, err := mainFn(exports, c.rt.ToValue(params))
	if err != nil {
		return eval, c.errorInfo(err)
	}

	var items []any
	switch exported := result.Export().(type) {
	case []any:
		items = exported
	default:
		items = []any{exported}
	}
	eval.Geometries = make([]geometry.Geometry, 0, len(items))
	polygons := 0
	for i, item := range items {
		g, err := geometry.FromValue(item)
		if err != nil {
			return eval, &ErrorInfo{
				Kind:    services.KindEvaluation,
				Message: fmt.Sprintf("main result element %d is not a geometry: %v", i, err),
			}
		}
		polygons += len(g.Polygons)
		eval.Geometries = append(eval.Geometries, g)
	}
	eval.Metadata = Metadata{
		Count:      len(eval.Geometries),
		Polygons:   polygons,
		DurationMs: time.Since(start).Milliseconds(),
	}
	return eval, nil
}

func (c *Context) errorInfo(err error) *ErrorInfo {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ErrorInfo{Kind: services.KindTimeout, Message: fmt.Sprintf("script interrupted: %v", interrupted.Value())}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if hostErr, found := c.hostErrors[obj]; found {
				return &ErrorInfo{Kind: services.Kind(hostErr), Message: hostErr.Error(), Stack: ex.String()}
			}
		}
		return &ErrorInfo{Kind: services.KindEvaluation, Message: ex.Value().String(), Stack: ex.String()}
	}
	kind := services.Kind(err)
	if kind == services.KindInternal {
		kind = services.KindEvaluation
	}
	return &ErrorInfo{Kind: kind, Message: err.Error()}
}
