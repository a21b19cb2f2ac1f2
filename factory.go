// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

// Factory constructs RunLoops with a shared base configuration, typically
// the wait strategy and logger chosen once at startup. It replaces a
// process-wide preferred loop type: pass the Factory to whatever needs to
// create loops.
type Factory struct {
	opts []LoopOption
}

// NewFactory validates opts and returns a Factory applying them to every
// loop it creates.
func NewFactory(opts ...LoopOption) (*Factory, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	// probe the strategy so unsupported platforms fail here, not per loop
	w, err := newWaker(cfg.waitStrategy)
	if err != nil {
		return nil, err
	}
	_ = w.close()
	return &Factory{opts: append([]LoopOption(nil), opts...)}, nil
}

// New creates a RunLoop with the factory's options, followed by extra.
func (f *Factory) New(extra ...LoopOption) (*RunLoop, error) {
	opts := make([]LoopOption, 0, len(f.opts)+len(extra))
	opts = append(opts, f.opts...)
	opts = append(opts, extra...)
	return New(opts...)
}

// NewWithPerformer creates a RunLoop and a Performer bound to it.
func (f *Factory) NewWithPerformer(extra ...LoopOption) (*RunLoop, *Performer, error) {
	l, err := f.New(extra...)
	if err != nil {
		return nil, nil, err
	}
	return l, NewPerformer(l), nil
}
