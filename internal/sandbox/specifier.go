package sandbox

import (
	"fmt"
	"net/url"
	"strings"

	"modelforge/internal/services"
)

// SpecifierKind classifies a module reference.
type SpecifierKind int

const (
	SpecifierTrusted SpecifierKind = iota + 1
	SpecifierBundle
	SpecifierRemote
	SpecifierRelative
)

func (k SpecifierKind) String() string {
	switch k {
	case SpecifierTrusted:
		return "trusted"
	case SpecifierBundle:
		return "bundle"
	case SpecifierRemote:
		return "remote"
	case SpecifierRelative:
		return "relative"
	default:
		return "unknown"
	}
}

// Specifier is a resolved module reference. URL is the absolute cache key
// for every kind except SpecifierTrusted, which carries Path instead.
type Specifier struct {
	Kind SpecifierKind
	Raw  string
	URL  string
	Path []string
}

// Resolver turns specifiers into absolute module locations.
type Resolver struct {
	trusted     string
	origin      *url.URL
	prefix      string
	allowRemote bool
}

// NewResolver builds a resolver. origin must be an absolute http(s) URL and
// prefix a path such as "/libs/".
func NewResolver(trusted, origin, prefix string, allowRemote bool) (*Resolver, error) {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sandbox", "resolver", fmt.Sprintf("origin %q must be an absolute http(s) URL", origin), err)
	}
	if trusted == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sandbox", "resolver", "trusted library name is empty", nil)
	}
	if !strings.HasPrefix(prefix, "/") || prefix == "/" {
		return nil, services.Wrap(services.ErrConfiguration, "sandbox", "resolver", fmt.Sprintf("bundle prefix %q must be a rooted path below /", prefix), nil)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Resolver{trusted: trusted, origin: u, prefix: prefix, allowRemote: allowRemote}, nil
}

// Resolve classifies spec. parent is the absolute URL of the requiring module
// and is empty for top-level code, which may not use relative specifiers.
func (r *Resolver) Resolve(spec, parent string) (Specifier, error) {
	spec = strings.TrimSpace(spec)
	out := Specifier{Raw: spec}

	if path, ok := r.trustedPath(spec); ok {
		out.Kind = SpecifierTrusted
		out.Path = path
		return out, nil
	}

	switch {
	case strings.HasPrefix(spec, r.prefix):
		ref, err := url.Parse(spec)
		if err != nil {
			return out, r.invalid(spec, err)
		}
		resolved := r.origin.ResolveReference(ref)
		out.Kind = SpecifierBundle
		out.URL = resolved.String()
		return out, r.checkRemote(resolved)

	case strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://"):
		u, err := url.Parse(spec)
		if err != nil || u.Host == "" {
			return out, r.invalid(spec, err)
		}
		out.Kind = SpecifierRemote
		out.URL = u.String()
		return out, r.checkRemote(u)

	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		if parent == "" {
			return out, services.Wrap(services.ErrValidation, "sandbox", "resolve",
				fmt.Sprintf("relative specifier %q needs a parent module; top-level code has none", spec), nil)
		}
		base, err := url.Parse(parent)
		if err != nil || !base.IsAbs() {
			return out, r.invalid(spec, err)
		}
		ref, err := url.Parse(spec)
		if err != nil {
			return out, r.invalid(spec, err)
		}
		resolved := base.ResolveReference(ref)
		out.Kind = SpecifierRelative
		out.URL = resolved.String()
		return out, r.checkRemote(resolved)
	}
	return out, r.invalid(spec, nil)
}

// trustedPath matches the reserved library name followed by an optional
// subpath separated by "/" or ".".
func (r *Resolver) trustedPath(spec string) ([]string, bool) {
	if !strings.HasPrefix(spec, r.trusted) {
		return nil, false
	}
	rest := spec[len(r.trusted):]
	if rest == "" {
		return nil, true
	}
	if rest[0] != '/' && rest[0] != '.' {
		return nil, false
	}
	return strings.FieldsFunc(rest, func(c rune) bool { return c == '/' || c == '.' }), true
}

// IsBundle reports whether u is served from the local bundle prefix.
func (r *Resolver) IsBundle(u *url.URL) bool {
	return u.Scheme == r.origin.Scheme && u.Host == r.origin.Host && strings.HasPrefix(u.Path, r.prefix)
}

// BundleBase is the absolute URL under which local bundles live.
func (r *Resolver) BundleBase() string {
	return r.origin.ResolveReference(&url.URL{Path: r.prefix}).String()
}

func (r *Resolver) checkRemote(u *url.URL) error {
	if r.allowRemote || r.IsBundle(u) {
		return nil
	}
	return services.Wrap(services.ErrValidation, "sandbox", "resolve",
		fmt.Sprintf("remote module %s is not allowed", u.String()), nil)
}

func (r *Resolver) invalid(spec string, err error) error {
	return services.Wrap(services.ErrValidation, "sandbox", "resolve",
		fmt.Sprintf("unsupported module specifier %q", spec), err)
}
