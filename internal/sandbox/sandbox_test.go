package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"modelforge/internal/geometry"
	"modelforge/internal/logging"
	"modelforge/internal/services"
)

func newTestContext(t *testing.T, opts Options) *Context {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	c, err := NewContext(opts)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c
}

func moduleServer(t *testing.T, modules map[string]string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		body, ok := modules[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const cubeMain = `
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => cube({ size: 2 }) };
`

func TestResolverClassifiesSpecifiers(t *testing.T) {
	r, err := NewResolver("@jscad/modeling", "http://localhost:3000", "/libs/", true)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	tests := []struct {
		spec   string
		parent string
		kind   SpecifierKind
		url    string
		path   []string
	}{
		{spec: "@jscad/modeling", kind: SpecifierTrusted},
		{spec: "@jscad/modeling/primitives", kind: SpecifierTrusted, path: []string{"primitives"}},
		{spec: "@jscad/modeling.transforms.translate", kind: SpecifierTrusted, path: []string{"transforms", "translate"}},
		{spec: "/libs/gears/spur.js", kind: SpecifierBundle, url: "http://localhost:3000/libs/gears/spur.js"},
		{spec: "https://cdn.example.com/a.js", kind: SpecifierRemote, url: "https://cdn.example.com/a.js"},
		{spec: "./b.js", parent: "https://cdn.example.com/lib/a.js", kind: SpecifierRelative, url: "https://cdn.example.com/lib/b.js"},
		{spec: "../c.js", parent: "https://cdn.example.com/lib/a.js", kind: SpecifierRelative, url: "https://cdn.example.com/c.js"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.spec, tt.parent)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.spec, err)
		}
		if got.Kind != tt.kind || got.URL != tt.url || strings.Join(got.Path, ".") != strings.Join(tt.path, ".") {
			t.Fatalf("Resolve(%q) = %+v", tt.spec, got)
		}
	}

	for _, bad := range []struct{ spec, parent string }{
		{"./b.js", ""},
		{"lodash", ""},
		{"@jscad/modelingx", ""},
		{"ftp://example.com/a.js", ""},
	} {
		if _, err := r.Resolve(bad.spec, bad.parent); services.Kind(err) != services.KindValidation {
			t.Fatalf("Resolve(%q) error kind = %q, want ValidationError", bad.spec, services.Kind(err))
		}
	}
}

func TestResolverRejectsRemoteWhenDisabled(t *testing.T) {
	r, err := NewResolver("@jscad/modeling", "http://localhost:3000", "/libs/", false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Resolve("https://cdn.example.com/a.js", ""); services.Kind(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := r.Resolve("./x.js", "http://localhost:3000/libs/a.js"); err != nil {
		t.Fatalf("relative bundle path rejected: %v", err)
	}
}

func TestEvaluateSingleObjectBecomesOneElement(t *testing.T) {
	c := newTestContext(t, Options{})
	eval, info := c.Evaluate(context.Background(), cubeMain, nil)
	if info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	if len(eval.Geometries) != 1 || eval.Metadata.Count != 1 {
		t.Fatalf("expected one geometry, got %d (count %d)", len(eval.Geometries), eval.Metadata.Count)
	}
	if eval.Metadata.Polygons != 6 {
		t.Fatalf("polygons = %d, want 6", eval.Metadata.Polygons)
	}
	if eval.HasDefinitions {
		t.Fatal("did not expect parameter definitions")
	}
}

func TestEvaluateArrayResult(t *testing.T) {
	c := newTestContext(t, Options{})
	code := `
const { primitives, transforms } = require('@jscad/modeling');
module.exports = {
  main: () => [
    primitives.cube({ size: 1 }),
    transforms.translate([5, 0, 0], primitives.sphere({ radius: 1, segments: 8 })),
  ],
};`
	eval, info := c.Evaluate(context.Background(), code, nil)
	if info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	if eval.Metadata.Count != 2 {
		t.Fatalf("count = %d, want 2", eval.Metadata.Count)
	}
	box, _ := geometry.Bounds(eval.Geometries[1])
	if box.Center.X() < 4.99 || box.Center.X() > 5.01 {
		t.Fatalf("translated center = %v", box.Center)
	}
}

func TestEvaluateMissingMainIsEvaluationError(t *testing.T) {
	c := newTestContext(t, Options{})
	_, info := c.Evaluate(context.Background(), `module.exports = { notMain: () => 1 };`, nil)
	if info == nil || info.Kind != services.KindEvaluation {
		t.Fatalf("expected EvaluationError, got %+v", info)
	}
}

func TestEvaluateScriptExceptions(t *testing.T) {
	c := newTestContext(t, Options{})
	tests := map[string]string{
		"throw":       `module.exports = { main: () => { throw new Error('boom'); } };`,
		"syntax":      `module.exports = { main: () => { ;`,
		"reference":   `module.exports = { main: () => undefinedThing() };`,
		"bad element": `const {cube}=require('@jscad/modeling').primitives; module.exports = { main: () => [cube(), 5] };`,
		"bad options": `const {cube}=require('@jscad/modeling').primitives; module.exports = { main: () => cube({ size: -1 }) };`,
	}
	for name, code := range tests {
		_, info := c.Evaluate(context.Background(), code, nil)
		if info == nil || info.Kind != services.KindEvaluation {
			t.Fatalf("%s: expected EvaluationError, got %+v", name, info)
		}
	}
	_, info := c.Evaluate(context.Background(), tests["bad element"], nil)
	if !strings.Contains(info.Message, "element 1") {
		t.Fatalf("message should name the element: %q", info.Message)
	}
	_, info = c.Evaluate(context.Background(), tests["throw"], nil)
	if !strings.Contains(info.Message, "boom") {
		t.Fatalf("message should carry the thrown text: %q", info.Message)
	}
}

func TestEvaluateReportsParameterDefinitions(t *testing.T) {
	c := newTestContext(t, Options{})
	code := `
const { cube } = require('@jscad/modeling').primitives;
module.exports = {
  getParameterDefinitions: () => [{ name: 'width', type: 'float', initial: 30 }],
  main: (p) => cube({ size: p.width }),
};`
	eval, info := c.Evaluate(context.Background(), code, map[string]any{"width": 4.0})
	if info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	defs, ok := eval.ParameterDefinitions.([]any)
	if !eval.HasDefinitions || !ok || len(defs) != 1 {
		t.Fatalf("unexpected definitions %#v", eval.ParameterDefinitions)
	}
	box, _ := geometry.Bounds(eval.Geometries[0])
	if box.Dimensions != (geometry.Vec3{4, 4, 4}) {
		t.Fatalf("dimensions = %v, want 4x4x4", box.Dimensions)
	}
}

func TestRelativeSpecifierAtTopLevelIsRejected(t *testing.T) {
	c := newTestContext(t, Options{})
	_, info := c.Evaluate(context.Background(), `const x = require('./helper.js'); module.exports = { main: () => x };`, nil)
	if info == nil || info.Kind != services.KindValidation {
		t.Fatalf("expected ValidationError, got %+v", info)
	}
}

func TestUnknownTrustedMemberIsRejected(t *testing.T) {
	c := newTestContext(t, Options{})
	_, info := c.Evaluate(context.Background(), `const x = require('@jscad/modeling/extrusions'); module.exports = { main: () => x };`, nil)
	if info == nil || info.Kind != services.KindValidation {
		t.Fatalf("expected ValidationError, got %+v", info)
	}
}

func TestRemoteModuleIsCachedPerContext(t *testing.T) {
	var hits atomic.Int32
	srv := moduleServer(t, map[string]string{
		"/lib.js": `module.exports = { created: Date.now(), bag: {} };`,
	}, &hits)
	c := newTestContext(t, Options{AllowRemote: true})

	code := `
const a = require('` + srv.URL + `/lib.js');
const b = require('` + srv.URL + `/lib.js');
a.bag.touched = true;
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => {
  if (a !== b || !b.bag.touched) throw new Error('module was not shared');
  return cube();
} };`
	if _, info := c.Evaluate(context.Background(), code, nil); info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("fetched %d times, want 1", got)
	}

	first, err := c.Require(context.Background(), srv.URL+"/lib.js")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	second, err := c.Require(context.Background(), srv.URL+"/lib.js")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if !first.SameAs(second) {
		t.Fatal("expected reference-equal exports")
	}
	if hits.Load() != 1 || c.Cache().Len() != 1 {
		t.Fatalf("hits=%d cached=%d", hits.Load(), c.Cache().Len())
	}

	fresh := newTestContext(t, Options{AllowRemote: true})
	if _, err := fresh.Require(context.Background(), srv.URL+"/lib.js"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatal("a new context must not share the cache")
	}
}

func TestCircularRequireFails(t *testing.T) {
	srv := moduleServer(t, map[string]string{
		"/a.js": `const b = require('./b.js'); module.exports = { b };`,
		"/b.js": `const a = require('./a.js'); module.exports = { a };`,
	}, nil)
	c := newTestContext(t, Options{AllowRemote: true})
	code := `const a = require('` + srv.URL + `/a.js'); module.exports = { main: () => a };`
	_, info := c.Evaluate(context.Background(), code, nil)
	if info == nil || info.Kind != services.KindCircularModule {
		t.Fatalf("expected CircularModuleReference, got %+v", info)
	}
	for _, name := range []string{"/a.js", "/b.js"} {
		if st := c.Cache().state(srv.URL + name); st != moduleUnresolved {
			t.Fatalf("%s left in state %d", name, st)
		}
	}
}

func TestRemoteRelativeRequireResolvesAgainstParentURL(t *testing.T) {
	var hits atomic.Int32
	srv := moduleServer(t, map[string]string{
		"/a/b.js": `const c = require('../c.js'); const d = require('./d.js'); module.exports = { c, d };`,
		"/c.js":   `module.exports = { name: 'c' };`,
		"/a/d.js": `module.exports = { name: 'd' };`,
	}, &hits)
	c := newTestContext(t, Options{AllowRemote: true})

	code := `
const b = require('` + srv.URL + `/a/b.js');
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => {
  if (b.c.name !== 'c' || b.d.name !== 'd') throw new Error('wrong modules: ' + JSON.stringify(b));
  return cube();
} };`
	if _, info := c.Evaluate(context.Background(), code, nil); info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	for _, name := range []string{"/a/b.js", "/c.js", "/a/d.js"} {
		if st := c.Cache().state(srv.URL + name); st != moduleResolved {
			t.Fatalf("%s not resolved (state %d)", name, st)
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("fetched %d times, want 3", hits.Load())
	}
}

func TestModuleThrowingDuringLoadCanBeRequiredAgain(t *testing.T) {
	srv := moduleServer(t, map[string]string{
		"/flaky.js": `
globalThis.flakyLoads = (globalThis.flakyLoads || 0) + 1;
if (globalThis.flakyLoads === 1) throw new Error('first load fails');
module.exports = { ok: true };`,
	}, nil)
	c := newTestContext(t, Options{AllowRemote: true})
	url := srv.URL + "/flaky.js"

	_, err := c.Require(context.Background(), url)
	if err == nil || !strings.Contains(err.Error(), "first load fails") {
		t.Fatalf("expected the module's own error, got %v", err)
	}
	if st := c.Cache().state(url); st != moduleUnresolved {
		t.Fatalf("failed module left in state %d", st)
	}

	exports, err := c.Require(context.Background(), url)
	if services.Kind(err) == services.KindCircularModule {
		t.Fatalf("retry reported a circular reference: %v", err)
	}
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if obj, ok := exports.Export().(map[string]any); !ok || obj["ok"] != true {
		t.Fatalf("unexpected exports %v", exports.Export())
	}

	code := `
let first = 'none';
try { require('` + srv.URL + `/flaky.js'); } catch (e) { first = String(e); }
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => { if (first !== 'none') throw new Error(first); return cube(); } };`
	if _, info := c.Evaluate(context.Background(), code, nil); info != nil {
		t.Fatalf("cached module should load without error, got %+v", info)
	}
}

func TestFetchFailureKinds(t *testing.T) {
	srv := moduleServer(t, map[string]string{}, nil)
	c := newTestContext(t, Options{AllowRemote: true})
	code := `const m = require('` + srv.URL + `/missing.js'); module.exports = { main: () => m };`
	_, info := c.Evaluate(context.Background(), code, nil)
	if info == nil || info.Kind != services.KindModuleFetch {
		t.Fatalf("expected ModuleFetchFailure, got %+v", info)
	}
	if !strings.Contains(info.Message, "404") {
		t.Fatalf("message should include the status: %q", info.Message)
	}

	big := moduleServer(t, map[string]string{"/big.js": strings.Repeat("x", 64)}, nil)
	small := newTestContext(t, Options{AllowRemote: true, MaxModuleBytes: 16})
	if _, err := small.Require(context.Background(), big.URL+"/big.js"); services.Kind(err) != services.KindModuleFetch {
		t.Fatalf("expected size cap failure, got %v", err)
	}
}

func TestBundleModulesLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "gears"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"gears/spur.js": `const util = require('./util.js'); module.exports = { teeth: util.double(6) };`,
		"gears/util.js": `module.exports = { double: (n) => n * 2 };`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	c := newTestContext(t, Options{BundleDir: dir})
	code := `
const gear = require('/libs/gears/spur.js');
const { cube } = require('@jscad/modeling').primitives;
module.exports = { main: () => { if (gear.teeth !== 12) throw new Error('teeth ' + gear.teeth); return cube(); } };`
	if _, info := c.Evaluate(context.Background(), code, nil); info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}

	_, info := c.Evaluate(context.Background(), `require('/libs/../../etc/passwd'); module.exports = {};`, nil)
	if info == nil || info.Kind != services.KindValidation {
		t.Fatalf("expected escaping bundle path to be rejected, got %+v", info)
	}
}

func TestIncludeCopiesExportsToGlobalScope(t *testing.T) {
	c := newTestContext(t, Options{})
	code := `
include('@jscad/modeling/primitives');
console.log('building', 1, { a: 1 });
module.exports = { main: () => cube({ size: 3 }) };`
	eval, info := c.Evaluate(context.Background(), code, nil)
	if info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	if len(eval.Geometries) != 1 {
		t.Fatalf("geometries = %d", len(eval.Geometries))
	}
}

func TestHandWrittenGeometryVertexForms(t *testing.T) {
	c := newTestContext(t, Options{})
	code := `
module.exports = { main: () => ({ polygons: [
  { vertices: [[0, 0, 0], { x: 1, y: 0, z: 0 }, { pos: [0, 1, 0] }] },
  { vertices: [{ point: { x: 0, y: 0, z: 1 } }, [0, 0, 0], [0, 1, 0]] },
] }) };`
	eval, info := c.Evaluate(context.Background(), code, nil)
	if info != nil {
		t.Fatalf("unexpected error: %+v", info)
	}
	if got := eval.Geometries[0].Polygons[0].Vertices[2]; got != (geometry.Vec3{0, 1, 0}) {
		t.Fatalf("pos wrapper vertex = %v", got)
	}
	if got := eval.Geometries[0].Polygons[1].Vertices[0]; got != (geometry.Vec3{0, 0, 1}) {
		t.Fatalf("point wrapper vertex = %v", got)
	}
}
