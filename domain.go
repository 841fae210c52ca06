package rulecache

import "context"

// CutoffSource says which scope level resolved a cutoff value.
type CutoffSource string

const (
	SourceVendor   CutoffSource = "vendor"
	SourceWindow   CutoffSource = "window"
	SourceOperator CutoffSource = "operator"
	SourceDefault  CutoffSource = "default"
)

// CutoffValue is the cached answer to a sales cutoff lookup: how many minutes
// before a scheduled draw new wagers stop being accepted, and which scope
// level supplied the number.
type CutoffValue struct {
	Minutes int          `json:"minutes" msgpack:"minutes"`
	Source  CutoffSource `json:"source" msgpack:"source"`
}

func (cc *cache) GetCutoff(ctx context.Context, scope CutoffScope) (CutoffValue, bool) {
	raw, ok := cc.Get(ctx, scope.key())
	if !ok {
		return CutoffValue{}, false
	}
	v, err := cc.cutoffCodec.Decode(raw)
	if err != nil {
		// Stored bytes that don't parse as a cutoff are someone else's
		// problem to re-populate; stay absent rather than fail.
		cc.log.Debug("cutoff decode failed", Fields{"key": scope.key(), "err": err})
		return CutoffValue{}, false
	}
	return v, true
}

func (cc *cache) SetCutoff(ctx context.Context, scope CutoffScope, v CutoffValue, opts ...SetOption) error {
	payload, err := cc.cutoffCodec.Encode(v)
	if err != nil {
		return err
	}
	return cc.Set(ctx, scope.key(), payload, opts...)
}

// GetRestriction returns the opaque rule payload cached for a scope. The
// engine imposes no shape on it; the rule evaluator owns the format.
func (cc *cache) GetRestriction(ctx context.Context, scope RestrictionScope) ([]byte, bool) {
	raw, ok := cc.Get(ctx, scope.key())
	if !ok {
		return nil, false
	}
	v, err := cc.restrictionCodec.Decode(raw)
	if err != nil {
		// best effort: hand back the raw bytes unchanged
		return raw, true
	}
	return v, true
}

func (cc *cache) SetRestriction(ctx context.Context, scope RestrictionScope, payload []byte, opts ...SetOption) error {
	encoded, err := cc.restrictionCodec.Encode(payload)
	if err != nil {
		return err
	}
	return cc.Set(ctx, scope.key(), encoded, opts...)
}
