package registry

import "context"

// Multi dispatches FetchNPM/FetchPyPI to separate per-ecosystem clients,
// satisfying Client as a single value the rest of the pipeline can hold.
// Either field may be nil, in which case that ecosystem's fetch fails
// with ErrNotFound rather than panicking.
type Multi struct {
	NPM  *NPM
	PyPI *PyPI
}

func (m Multi) FetchNPM(ctx context.Context, name, version string) (Metadata, error) {
	if m.NPM == nil {
		return Metadata{}, ErrNotFound
	}
	return m.NPM.FetchNPM(ctx, name, version)
}

func (m Multi) FetchPyPI(ctx context.Context, name, version string) (Metadata, error) {
	if m.PyPI == nil {
		return Metadata{}, ErrNotFound
	}
	return m.PyPI.FetchPyPI(ctx, name, version)
}
