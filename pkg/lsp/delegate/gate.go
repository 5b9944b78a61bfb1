package delegate

import (
	"github.com/grindlemire/gsxls/pkg/lsp/document"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// Stage says when a gate runs relative to document lookup and projection.
type Stage int

const (
	// StageRequest gates see only the request; they run before the
	// document is looked up.
	StageRequest Stage = iota
	// StageDocument gates also see the document snapshot.
	StageDocument
	// StageProjection gates also see the projection of the position.
	StageProjection
)

func (s Stage) String() string {
	switch s {
	case StageRequest:
		return "request"
	case StageDocument:
		return "document"
	case StageProjection:
		return "projection"
	}
	return "unknown"
}

// GateInput is what a gate can inspect. Fields a stage has not reached yet
// are zero.
type GateInput[Req any] struct {
	Request    Req
	Snapshot   *document.Snapshot
	Projection mapping.Projection
}

// Gate is a named precondition of a request kind. A failing gate ends the
// request with Reason.
type Gate[Req any] struct {
	Name   string
	Stage  Stage
	Reason Reason
	Check  func(in GateInput[Req]) bool
}

// Features reports whether a feature is switched on.
type Features interface {
	Enabled(feature string) bool
}

// Triggers reports whether a trigger character is allowed for a language.
type Triggers interface {
	TriggerAllowed(lang mapping.Language, ch string) bool
}

// FeatureGate fails with FeatureDisabled when feature is off. It runs before
// the document is looked up.
func FeatureGate[Req any](features Features, feature string) Gate[Req] {
	return Gate[Req]{
		Name:   "feature:" + feature,
		Stage:  StageRequest,
		Reason: FeatureDisabled,
		Check: func(GateInput[Req]) bool {
			return features.Enabled(feature)
		},
	}
}

// TriggerGate fails with TriggerRejected when the request's trigger
// character is not allowed for the language the position resolved to.
func TriggerGate[Req any](triggers Triggers, ch func(Req) string) Gate[Req] {
	return Gate[Req]{
		Name:   "trigger",
		Stage:  StageProjection,
		Reason: TriggerRejected,
		Check: func(in GateInput[Req]) bool {
			return triggers.TriggerAllowed(in.Projection.Language, ch(in.Request))
		},
	}
}

// runGates evaluates the gates of one stage in declaration order and returns
// the first failure.
func runGates[Req any](gates []Gate[Req], stage Stage, in GateInput[Req]) (Gate[Req], bool) {
	for _, g := range gates {
		if g.Stage != stage {
			continue
		}
		if !g.Check(in) {
			return g, false
		}
	}
	return Gate[Req]{}, true
}
