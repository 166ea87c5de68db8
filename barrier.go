package boson

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// BufferBarrier is a memory dependency on one buffer. Buffer indexes the
// task's resolved qualifiers, not the device handle table.
type BufferBarrier struct {
	Buffer    int
	Offset    uint64
	Size      uint64
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
}

// ImageBarrier is a memory dependency plus layout transition on one image.
// Image indexes the task's resolved qualifiers.
type ImageBarrier struct {
	Image     int
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	Aspect    vk.ImageAspectFlags
}

// PipelineBarrier is one vkCmdPipelineBarrier worth of work: every
// sub-barrier in it shares the same execution dependency, the stage pair.
type PipelineBarrier struct {
	SrcStage vk.PipelineStageFlags
	DstStage vk.PipelineStageFlags
	Buffers  []BufferBarrier
	Images   []ImageBarrier
}

// deriveBarriers produces one naive barrier per qualifier, transitioning the
// resource from its last known access this frame to the requested one. The
// hazard tables are updated as each qualifier is processed, so a later
// qualifier in the same task sees the access the earlier one left behind.
func deriveBarriers(
	qualifiers []Qualifier,
	bufferSize func(Buffer) (uint64, error),
	lastBufferAccess map[Buffer]BufferAccess,
	lastImageAccess map[Image]ImageAccess,
) ([]PipelineBarrier, error) {
	naive := make([]PipelineBarrier, 0, len(qualifiers))

	for i, q := range qualifiers {
		switch q.kind {
		case qualifierBuffer:
			src := lastBufferAccess[q.buffer]
			dst := q.bufferAccess

			size, err := bufferSize(q.buffer)
			if err != nil {
				return nil, fmt.Errorf("resolving size of buffer %d: %w", q.buffer, err)
			}

			naive = append(naive, PipelineBarrier{
				SrcStage: src.PipelineStages(),
				DstStage: dst.PipelineStages(),
				Buffers: []BufferBarrier{{
					Buffer:    i,
					Offset:    0,
					Size:      size,
					SrcAccess: src.Permission().AccessMask(),
					DstAccess: dst.Permission().AccessMask(),
				}},
			})

			lastBufferAccess[q.buffer] = dst

		case qualifierImage:
			src := lastImageAccess[q.image]
			dst := q.imageAccess

			naive = append(naive, PipelineBarrier{
				SrcStage: src.PipelineStages(),
				DstStage: dst.PipelineStages(),
				Images: []ImageBarrier{{
					Image:     i,
					OldLayout: src.Layout(),
					NewLayout: dst.Layout(),
					SrcAccess: src.Permission().AccessMask(),
					DstAccess: dst.Permission().AccessMask(),
					Aspect:    q.aspect,
				}},
			})

			lastImageAccess[q.image] = dst
		}
	}

	return naive, nil
}

// mergeBarriers greedily batches naive barriers that share an exact
// (src stage, dst stage) pair into a single pipeline barrier. Barriers with
// distinct pairs stay separate; no cross-pair reordering is attempted.
// Order among the returned batches is unspecified.
func mergeBarriers(naive []PipelineBarrier) []PipelineBarrier {
	type stagePair struct {
		src vk.PipelineStageFlags
		dst vk.PipelineStageFlags
	}

	merged := make(map[stagePair]*PipelineBarrier)

	for i := range naive {
		b := naive[i]
		key := stagePair{b.SrcStage, b.DstStage}
		if existing, ok := merged[key]; ok {
			existing.Buffers = append(existing.Buffers, b.Buffers...)
			existing.Images = append(existing.Images, b.Images...)
		} else {
			merged[key] = &b
		}
	}

	out := make([]PipelineBarrier, 0, len(merged))
	for _, b := range merged {
		out = append(out, *b)
	}
	return out
}
