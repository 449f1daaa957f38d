package touchloop

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/phuslu/log"
)

var (
	ErrUnknownProvider     = errors.New("touchloop: unknown provider backend")
	ErrInvalidProviderSpec = errors.New("touchloop: invalid provider spec")
)

// DispatchFunc is how a provider reports one occurrence to the loop.
type DispatchFunc func(kind EventKind, t *Touch)

// Provider is an input source. Start and Stop are called from the loop
// goroutine. Update is called once per frame from the loop goroutine and
// must hand over everything gathered since the previous call without
// blocking; providers reading devices in the background buffer behind their
// own synchronisation.
type Provider interface {
	Start() error
	Stop() error
	Update(dispatch DispatchFunc) error
}

// ProviderFactory builds a provider named id from the backend arguments.
type ProviderFactory func(id string, args string) (Provider, error)

var factories = struct {
	sync.RWMutex
	m map[string]ProviderFactory
}{m: map[string]ProviderFactory{}}

// RegisterProvider makes a backend available to NewProvider. It panics on
// duplicate registration, like database/sql drivers.
func RegisterProvider(backend string, factory ProviderFactory) {
	factories.Lock()
	defer factories.Unlock()
	if factory == nil {
		panic("touchloop: RegisterProvider factory is nil")
	}
	if _, dup := factories.m[backend]; dup {
		panic("touchloop: RegisterProvider called twice for " + backend)
	}
	factories.m[backend] = factory
}

// ProviderBackends lists the registered backend names, sorted.
func ProviderBackends() []string {
	factories.RLock()
	defer factories.RUnlock()
	names := make([]string, 0, len(factories.m))
	for name := range factories.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderSpec is the parsed form of "id:backend[,args]".
type ProviderSpec struct {
	ID      string
	Backend string
	Args    string
}

func (s ProviderSpec) String() string {
	if s.Args == "" {
		return s.ID + ":" + s.Backend
	}
	return s.ID + ":" + s.Backend + "," + s.Args
}

// ParseProviderSpec parses "id:backend[,args]".
func ParseProviderSpec(s string) (spec ProviderSpec, err error) {
	id, rest, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		err = fmt.Errorf("%q: %w", s, ErrInvalidProviderSpec)
		return
	}
	spec.ID = id
	spec.Backend, spec.Args = splitBackend(rest)
	if spec.Backend == "" {
		err = fmt.Errorf("%q: missing backend: %w", s, ErrInvalidProviderSpec)
	}
	return
}

func splitBackend(s string) (backend, args string) {
	backend, args, _ = strings.Cut(s, ",")
	return strings.TrimSpace(backend), strings.TrimSpace(args)
}

func NewProvider(spec ProviderSpec) (Provider, error) {
	factories.RLock()
	factory, ok := factories.m[spec.Backend]
	factories.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", spec.Backend, ErrUnknownProvider)
	}
	p, err := factory(spec.ID, spec.Args)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", spec, err)
	}
	return p, nil
}

// BuildProviders instantiates every spec. Unknown backends and construction
// failures are logged and skipped.
func BuildProviders(specs []ProviderSpec) (providers []Provider) {
	for _, spec := range specs {
		log.Debug().Msgf("Create provider from %s", spec)
		p, err := NewProvider(spec)
		if errors.Is(err, ErrUnknownProvider) {
			log.Warn().Str("provider", spec.ID).Msgf("Unknown <%s> provider", spec.Backend)
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("provider", spec.ID).Msg("provider skipped")
			continue
		}
		providers = append(providers, p)
	}
	return
}
