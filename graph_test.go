package boson

import (
	"errors"
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

// stubDevice satisfies graphDevice without a GPU. It records what the
// executor asked of it.
type stubDevice struct {
	frame    int
	rotated  int
	notReady map[int]bool

	bufferSizes map[Buffer]uint64

	begun  int
	ended  int
	resets int

	barriers []stubBarrier
	submits  []vk.SubmitInfo
	presents int

	bindless  bool
	refreshes int

	failAllocate bool
	failFences   bool
}

type stubBarrier struct {
	srcStage vk.PipelineStageFlags
	dstStage vk.PipelineStageFlags
	buffers  []vk.BufferMemoryBarrier
	images   []vk.ImageMemoryBarrier
}

func newStubDevice() *stubDevice {
	return &stubDevice{
		notReady:    make(map[int]bool),
		bufferSizes: make(map[Buffer]uint64),
	}
}

func (d *stubDevice) frameIndex(s Swapchain) int { return d.frame }

func (d *stubDevice) rotateFrame(s Swapchain) {
	d.frame = (d.frame + 1) % FrameLag
	d.rotated++
}

func (d *stubDevice) fenceReady(f vk.Fence) (bool, error) {
	return !d.notReady[d.frame], nil
}

func (d *stubDevice) resetFence(f vk.Fence) error {
	d.resets++
	return nil
}

func (d *stubDevice) beginCommands(cb *CommandBuffer) error {
	d.begun++
	return nil
}

func (d *stubDevice) endCommands(cb *CommandBuffer) error {
	d.ended++
	return nil
}

func (d *stubDevice) emitPipelineBarrier(cb *CommandBuffer, srcStage, dstStage vk.PipelineStageFlags,
	buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) error {
	d.barriers = append(d.barriers, stubBarrier{srcStage, dstStage, buffers, images})
	return nil
}

func (d *stubDevice) bufferRange(h Buffer) (vk.Buffer, uint64, error) {
	size, ok := d.bufferSizes[h]
	if !ok {
		var none vk.Buffer
		return none, 0, fmt.Errorf("unknown buffer handle %d", h)
	}
	var buffer vk.Buffer
	return buffer, size, nil
}

func (d *stubDevice) imageHandle(h Image) (vk.Image, error) {
	var image vk.Image
	return image, nil
}

func (d *stubDevice) frameSemaphore(h BinarySemaphore, frame int) (vk.Semaphore, error) {
	var sem vk.Semaphore
	return sem, nil
}

func (d *stubDevice) allocateFrameCommandBuffers(count int) ([]*CommandBuffer, error) {
	if d.failAllocate {
		return nil, errors.New("out of pool memory")
	}
	cbs := make([]*CommandBuffer, count)
	for i := range cbs {
		cbs[i] = &CommandBuffer{}
	}
	return cbs, nil
}

func (d *stubDevice) createFrameFences(count int) ([]vk.Fence, error) {
	if d.failFences {
		return nil, errors.New("too many objects")
	}
	return make([]vk.Fence, count), nil
}

func (d *stubDevice) graphicsQueue() vk.Queue {
	var queue vk.Queue
	return queue
}

func (d *stubDevice) queueSubmit(queue vk.Queue, info vk.SubmitInfo, fence vk.Fence) error {
	d.submits = append(d.submits, info)
	return nil
}

func (d *stubDevice) presentSwapchain(s Swapchain, wait vk.Semaphore) error {
	d.presents++
	return nil
}

func (d *stubDevice) bindlessEnabled() bool { return d.bindless }

func (d *stubDevice) refreshAddressTable(cb *CommandBuffer) error {
	d.refreshes++
	return nil
}

type testState struct {
	src Buffer
	dst Buffer
	img Image
}

func buildGraph(t *testing.T, device *stubDevice, swapchain Swapchain, tasks ...Task[testState]) *RenderGraph[testState] {
	t.Helper()
	builder := &RenderGraphBuilder[testState]{device: device, swapchain: swapchain}
	for _, task := range tasks {
		builder.Add(task)
	}
	graph, err := builder.Complete()
	require.NoError(t, err)
	return graph
}

func TestRenderExecutesTasksInDeclarationOrder(t *testing.T) {
	device := newStubDevice()

	var order []string
	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			order = append(order, "first")
			return nil
		}},
		Task[testState]{Run: func(s *testState, c *Commands) error {
			order = append(order, "second")
			c.Submit(Submit{})
			return nil
		}},
	)

	require.NoError(t, graph.Render(&testState{}))
	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, 1, device.begun)
	require.Equal(t, 1, device.ended)
	require.Len(t, device.submits, 1)
	require.Equal(t, 1, device.rotated)
}

func TestRenderDropsFrameWhenFencePending(t *testing.T) {
	device := newStubDevice()
	device.notReady[0] = true

	ran := false
	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			ran = true
			return nil
		}},
	)

	require.NoError(t, graph.Render(&testState{}))

	// A dropped frame mutates nothing: no reset, no recording, no
	// rotation, no clock update.
	require.False(t, ran)
	require.Zero(t, device.resets)
	require.Zero(t, device.begun)
	require.Zero(t, device.rotated)
	require.Zero(t, graph.FrameTime())
}

func TestRenderRotatesFrameSlots(t *testing.T) {
	device := newStubDevice()

	var slots []int
	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			slots = append(slots, device.frame)
			c.Submit(Submit{})
			return nil
		}},
	)

	state := &testState{}
	for i := 0; i < 3; i++ {
		require.NoError(t, graph.Render(state))
	}

	require.Equal(t, []int{0, 1, 0}, slots)
	require.Equal(t, 3, device.rotated)
}

func TestRenderDerivesFirstUseBarriers(t *testing.T) {
	device := newStubDevice()
	device.bufferSizes[1] = 128

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{
			Resources: []Resource[testState]{
				BufferUse(func(s *testState) Buffer { return s.dst }, BufferAccessComputeShaderWriteOnly),
				ImageUse(func(s *testState) Image { return s.img }, ImageAccessComputeShaderWriteOnly,
					vk.ImageAspectFlags(vk.ImageAspectColorBit)),
			},
			Run: func(s *testState, c *Commands) error { return nil },
		},
	)

	require.NoError(t, graph.Render(&testState{dst: 1, img: 2}))

	// Both declarations share the (none, compute) stage pair, so one
	// batched barrier covers them.
	require.Len(t, device.barriers, 1)
	b := device.barriers[0]
	require.Equal(t, vk.PipelineStageFlags(0), b.srcStage)
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), b.dstStage)
	require.Len(t, b.buffers, 1)
	require.Len(t, b.images, 1)
	require.Equal(t, vk.DeviceSize(128), b.buffers[0].Size)
	require.Equal(t, vk.ImageLayoutUndefined, b.images[0].OldLayout)
	require.Equal(t, vk.ImageLayoutGeneral, b.images[0].NewLayout)
	require.Equal(t, uint32(vk.QueueFamilyIgnored), b.images[0].SrcQueueFamilyIndex)
}

func TestRenderTracksWriteThenReadHazard(t *testing.T) {
	device := newStubDevice()
	device.bufferSizes[5] = 64

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{
			Resources: []Resource[testState]{
				BufferUse(func(s *testState) Buffer { return s.dst }, BufferAccessComputeShaderWriteOnly),
			},
			Run: func(s *testState, c *Commands) error { return nil },
		},
		Task[testState]{
			Resources: []Resource[testState]{
				BufferUse(func(s *testState) Buffer { return s.dst }, BufferAccessComputeShaderReadOnly),
			},
			Run: func(s *testState, c *Commands) error {
				c.Submit(Submit{})
				return nil
			},
		},
	)

	require.NoError(t, graph.Render(&testState{dst: 5}))
	require.Len(t, device.barriers, 2)

	second := device.barriers[1]
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), second.srcStage)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryWriteBit), second.buffers[0].SrcAccessMask)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryReadBit), second.buffers[0].DstAccessMask)
}

func TestRenderHazardStateResetsEachFrame(t *testing.T) {
	device := newStubDevice()
	device.bufferSizes[2] = 32

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{
			Resources: []Resource[testState]{
				BufferUse(func(s *testState) Buffer { return s.dst }, BufferAccessComputeShaderReadWrite),
			},
			Run: func(s *testState, c *Commands) error {
				c.Submit(Submit{})
				return nil
			},
		},
	)

	state := &testState{dst: 2}
	require.NoError(t, graph.Render(state))
	require.NoError(t, graph.Render(state))
	require.Len(t, device.barriers, 2)

	// The second frame starts from a clean hazard table.
	require.Equal(t, vk.PipelineStageFlags(0), device.barriers[1].srcStage)
	require.Equal(t, vk.AccessFlags(0), device.barriers[1].buffers[0].SrcAccessMask)
}

func TestRenderSubmitCarriesSemaphoresAndWaitStage(t *testing.T) {
	device := newStubDevice()

	wait := BinarySemaphore(0)
	signal := BinarySemaphore(1)

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			c.Submit(Submit{WaitSemaphore: &wait, SignalSemaphore: &signal})
			return nil
		}},
	)

	require.NoError(t, graph.Render(&testState{}))
	require.Len(t, device.submits, 1)

	info := device.submits[0]
	require.Equal(t, uint32(1), info.WaitSemaphoreCount)
	require.Equal(t, uint32(1), info.SignalSemaphoreCount)
	require.Equal(t,
		[]vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		info.PWaitDstStageMask)
}

func TestRenderWithoutSubmitSkipsQueue(t *testing.T) {
	device := newStubDevice()

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error { return nil }},
	)

	require.NoError(t, graph.Render(&testState{}))
	require.Empty(t, device.submits)
	require.Zero(t, device.presents)
	require.Equal(t, 1, device.rotated)
}

func TestRenderPresentsAfterSubmit(t *testing.T) {
	device := newStubDevice()

	graph := buildGraph(t, device, Swapchain(0),
		Task[testState]{Run: func(s *testState, c *Commands) error {
			c.Submit(Submit{})
			c.Present(Present{WaitSemaphore: 0})
			return nil
		}},
	)

	require.NoError(t, graph.Render(&testState{}))
	require.Len(t, device.submits, 1)
	require.Equal(t, 1, device.presents)
}

func TestRenderPresentOnHeadlessGraphFails(t *testing.T) {
	device := newStubDevice()

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			c.Present(Present{WaitSemaphore: 0})
			return nil
		}},
	)

	require.Error(t, graph.Render(&testState{}))
	require.Zero(t, device.presents)
}

func TestRenderTaskErrorAborts(t *testing.T) {
	device := newStubDevice()
	taskErr := errors.New("shader blew up")

	secondRan := false
	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			return taskErr
		}},
		Task[testState]{Run: func(s *testState, c *Commands) error {
			secondRan = true
			return nil
		}},
	)

	err := graph.Render(&testState{})
	require.ErrorIs(t, err, taskErr)
	require.False(t, secondRan)
	require.Empty(t, device.submits)
	require.Zero(t, device.rotated)
}

func TestRenderRefreshesAddressTable(t *testing.T) {
	device := newStubDevice()
	device.bindless = true

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{Run: func(s *testState, c *Commands) error {
			c.Submit(Submit{})
			return nil
		}},
	)

	state := &testState{}
	require.NoError(t, graph.Render(state))
	require.NoError(t, graph.Render(state))
	require.Equal(t, 2, device.refreshes)
}

func TestCompleteWrapsCreationFailures(t *testing.T) {
	device := newStubDevice()
	device.failAllocate = true

	builder := &RenderGraphBuilder[testState]{device: device, swapchain: NullSwapchain}
	_, err := builder.Complete()
	require.ErrorIs(t, err, ErrCreation)

	device.failAllocate = false
	device.failFences = true
	_, err = builder.Complete()
	require.ErrorIs(t, err, ErrCreation)
}

func TestRenderUnknownBufferHandleFails(t *testing.T) {
	device := newStubDevice()

	graph := buildGraph(t, device, NullSwapchain,
		Task[testState]{
			Resources: []Resource[testState]{
				BufferUse(func(s *testState) Buffer { return s.dst }, BufferAccessComputeShaderReadOnly),
			},
			Run: func(s *testState, c *Commands) error { return nil },
		},
	)

	require.Error(t, graph.Render(&testState{dst: 42}))
	require.Zero(t, device.rotated)
}
