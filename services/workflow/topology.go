// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"fmt"
	"regexp"
)

// validNamePattern constrains topology and worker names to identifiers
// safe for checkpoint keys and metrics labels.
var validNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Topology is the static pipeline graph: one entry worker fans out to a
// fixed set of siblings with no ordering among them; the siblings fan in
// to a join worker behind a strict barrier; after the join the session
// interrupts, and on resume a conditional edge either runs the optional
// worker or completes the session directly.
//
// The shape is fixed at build time; there is exactly one join and one
// conditional branch. Additional stages would need their own barrier
// specification, not an extension of this type.
type Topology struct {
	name          string
	entry         Worker
	fanout        []Worker
	join          Worker
	decisionField string
	optional      Worker
	byName        map[string]Worker
}

// Name returns the topology name.
func (t *Topology) Name() string { return t.name }

// Workers returns every worker in graph-declaration order:
// entry, fan-out set, join, optional.
func (t *Topology) Workers() []Worker {
	out := make([]Worker, 0, len(t.fanout)+3)
	out = append(out, t.entry)
	out = append(out, t.fanout...)
	out = append(out, t.join, t.optional)
	return out
}

// DecisionField returns the boolean state field the conditional edge reads.
func (t *Topology) DecisionField() string { return t.decisionField }

// TopologyBuilder constructs a Topology with validation.
//
// Thread Safety:
//
//	Not safe for concurrent use; build the topology in a single goroutine.
type TopologyBuilder struct {
	topo   Topology
	errors []error
}

// NewTopology creates a builder for a named topology.
func NewTopology(name string) *TopologyBuilder {
	b := &TopologyBuilder{}
	b.topo.name = name
	b.topo.byName = make(map[string]Worker)
	if !validNamePattern.MatchString(name) {
		b.errors = append(b.errors, fmt.Errorf("%w: topology name must match [a-zA-Z0-9_-]+, got %q", ErrInvalidInput, name))
	}
	return b
}

// register records a worker, checking for nil and duplicate names.
func (b *TopologyBuilder) register(w Worker) Worker {
	if w == nil {
		b.errors = append(b.errors, ErrNilWorker)
		return nil
	}
	name := w.Name()
	if !validNamePattern.MatchString(name) {
		b.errors = append(b.errors, fmt.Errorf("%w: worker name must match [a-zA-Z0-9_-]+, got %q", ErrInvalidInput, name))
		return w
	}
	if _, exists := b.topo.byName[name]; exists {
		b.errors = append(b.errors, NewWorkerError(name, ErrDuplicateWorker))
		return w
	}
	b.topo.byName[name] = w
	return w
}

// Entry sets the entry worker. It runs alone before anything else.
func (b *TopologyBuilder) Entry(w Worker) *TopologyBuilder {
	b.topo.entry = b.register(w)
	return b
}

// FanOut adds workers to the concurrent sibling set. Order carries no
// scheduling meaning; siblings are dispatched together once the entry
// worker completes.
func (b *TopologyBuilder) FanOut(ws ...Worker) *TopologyBuilder {
	for _, w := range ws {
		if registered := b.register(w); registered != nil {
			b.topo.fanout = append(b.topo.fanout, registered)
		}
	}
	return b
}

// Join sets the convergence worker. It becomes ready only after every
// sibling reaches done.
func (b *TopologyBuilder) Join(w Worker) *TopologyBuilder {
	b.topo.join = b.register(w)
	return b
}

// Decide sets the boolean state field the conditional edge evaluates
// after resume: true routes to the optional worker, false straight to
// completion.
func (b *TopologyBuilder) Decide(field string) *TopologyBuilder {
	b.topo.decisionField = field
	return b
}

// Optional sets the conditional post-review worker.
func (b *TopologyBuilder) Optional(w Worker) *TopologyBuilder {
	b.topo.optional = b.register(w)
	return b
}

// Build validates and returns the topology.
func (b *TopologyBuilder) Build() (*Topology, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if b.topo.entry == nil {
		return nil, fmt.Errorf("%w: topology requires an entry worker", ErrInvalidInput)
	}
	if len(b.topo.fanout) == 0 {
		return nil, fmt.Errorf("%w: topology requires at least one fan-out worker", ErrInvalidInput)
	}
	if b.topo.join == nil {
		return nil, fmt.Errorf("%w: topology requires a join worker", ErrInvalidInput)
	}
	if b.topo.optional == nil {
		return nil, fmt.Errorf("%w: topology requires the conditional worker", ErrInvalidInput)
	}
	if b.topo.decisionField == "" {
		return nil, fmt.Errorf("%w: topology requires a decision field", ErrInvalidInput)
	}
	topo := b.topo
	return &topo, nil
}
