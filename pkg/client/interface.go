package client

import (
	"context"

	"github.com/menta2k/idphoto/pkg/types"
)

// SegmentClient is the pluggable person-segmentation capability. Backends
// return either a per-pixel matte or a normalized subject outline; the
// segment adapter turns both into a frame-aligned mask.
type SegmentClient interface {
	SegmentSubject(ctx context.Context, model, imgB64 string) (*types.SegmentResult, error)
}
