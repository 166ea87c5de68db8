package boson

import (
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"
)

// Submit asks the graph to submit the frame's command buffer. Nil
// semaphores mean the submission neither waits nor signals.
type Submit struct {
	WaitSemaphore   *BinarySemaphore
	SignalSemaphore *BinarySemaphore
}

// Present asks the graph to present the acquired swapchain image once the
// given semaphore signals.
type Present struct {
	WaitSemaphore BinarySemaphore
}

// RenderGraphInfo configures a graph under construction. Pass nil to
// NewRenderGraphBuilder for a headless graph.
type RenderGraphInfo struct {
	// Swapchain the graph presents to. Headless graphs use NullSwapchain.
	Swapchain Swapchain
	DebugName string
}

// graphDevice is the slice of the device the executor consumes. Narrowing
// it to an interface keeps the frame loop testable without a GPU.
type graphDevice interface {
	frameIndex(s Swapchain) int
	rotateFrame(s Swapchain)

	fenceReady(f vk.Fence) (bool, error)
	resetFence(f vk.Fence) error

	beginCommands(cb *CommandBuffer) error
	endCommands(cb *CommandBuffer) error
	emitPipelineBarrier(cb *CommandBuffer, srcStage, dstStage vk.PipelineStageFlags,
		buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) error

	bufferRange(h Buffer) (vk.Buffer, uint64, error)
	imageHandle(h Image) (vk.Image, error)
	frameSemaphore(h BinarySemaphore, frame int) (vk.Semaphore, error)

	allocateFrameCommandBuffers(count int) ([]*CommandBuffer, error)
	createFrameFences(count int) ([]vk.Fence, error)

	graphicsQueue() vk.Queue
	queueSubmit(queue vk.Queue, info vk.SubmitInfo, fence vk.Fence) error
	presentSwapchain(s Swapchain, wait vk.Semaphore) error

	bindlessEnabled() bool
	refreshAddressTable(cb *CommandBuffer) error
}

// RenderGraphBuilder accumulates tasks in execution order. T is the
// application state resource accessors resolve against each frame.
type RenderGraphBuilder[T any] struct {
	device    graphDevice
	swapchain Swapchain
	debugName string
	tasks     []Task[T]
}

func NewRenderGraphBuilder[T any](device *Device, info *RenderGraphInfo) *RenderGraphBuilder[T] {
	b := &RenderGraphBuilder[T]{
		device:    device,
		swapchain: NullSwapchain,
	}
	if info != nil {
		b.swapchain = info.Swapchain
		b.debugName = info.DebugName
	}
	return b
}

// Add appends a task. Tasks execute in the order they were added; the graph
// never reorders.
func (b *RenderGraphBuilder[T]) Add(task Task[T]) *RenderGraphBuilder[T] {
	b.tasks = append(b.tasks, task)
	return b
}

// Complete allocates the graph's per-frame command buffers and fences and
// returns the executable graph. Failures wrap ErrCreation.
func (b *RenderGraphBuilder[T]) Complete() (*RenderGraph[T], error) {
	commandBuffers, err := b.device.allocateFrameCommandBuffers(FrameLag)
	if err != nil {
		return nil, fmt.Errorf("%w: allocating frame command buffers: %v", ErrCreation, err)
	}

	fences, err := b.device.createFrameFences(FrameLag)
	if err != nil {
		return nil, fmt.Errorf("%w: creating frame fences: %v", ErrCreation, err)
	}

	return &RenderGraph[T]{
		device:         b.device,
		swapchain:      b.swapchain,
		debugName:      b.debugName,
		tasks:          b.tasks,
		commandBuffers: commandBuffers,
		fences:         fences,
	}, nil
}

// RenderGraph executes its tasks once per Render call, deriving and
// batching the pipeline barriers each task's declarations require.
type RenderGraph[T any] struct {
	mu sync.Mutex

	device    graphDevice
	swapchain Swapchain
	debugName string
	tasks     []Task[T]

	commandBuffers []*CommandBuffer
	fences         []vk.Fence

	currentInstant time.Time
	lastInstant    time.Time
}

// FrameTime reports the wall-clock time between the two most recent
// rendered frames. Dropped frames do not advance it.
func (g *RenderGraph[T]) FrameTime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastInstant.IsZero() {
		return 0
	}
	return g.currentInstant.Sub(g.lastInstant)
}

// Destroy releases the graph's frame fences. Command buffers return to the
// device's pool when the pool is destroyed.
func (g *RenderGraph[T]) Destroy(d *Device) {
	for _, f := range g.fences {
		d.VKDestroyFence(f)
	}
	g.fences = nil
}

// Render records and submits one frame against the live application state.
//
// If the frame slot's previous submission has not retired yet, Render drops
// the frame and returns nil without touching any state. When a frame does
// run, every task must eventually lead to a Submit; a rendered frame whose
// tasks never request one leaves the slot's fence unsignaled and stalls
// that slot permanently.
func (g *RenderGraph[T]) Render(t *T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot := g.device.frameIndex(g.swapchain)
	fence := g.fences[slot]

	ready, err := g.device.fenceReady(fence)
	if err != nil {
		return fmt.Errorf("polling frame fence: %w", err)
	}
	if !ready {
		return nil
	}

	g.lastInstant = g.currentInstant
	g.currentInstant = time.Now()

	if err := g.device.resetFence(fence); err != nil {
		return fmt.Errorf("resetting frame fence: %w", err)
	}

	cb := g.commandBuffers[slot]
	if err := g.device.beginCommands(cb); err != nil {
		return fmt.Errorf("beginning frame commands: %w", err)
	}

	if g.device.bindlessEnabled() {
		if err := g.device.refreshAddressTable(cb); err != nil {
			return fmt.Errorf("refreshing address table: %w", err)
		}
	}

	cmds := &Commands{
		device:        g.device,
		commandBuffer: cb,
	}

	// Hazard state starts clean each frame: first use of a resource
	// transitions from the zero access, which for images means the
	// undefined layout.
	lastBufferAccess := make(map[Buffer]BufferAccess)
	lastImageAccess := make(map[Image]ImageAccess)

	bufferSize := func(h Buffer) (uint64, error) {
		_, size, err := g.device.bufferRange(h)
		return size, err
	}

	for i := range g.tasks {
		task := &g.tasks[i]

		qualifiers := make([]Qualifier, len(task.Resources))
		for j := range task.Resources {
			qualifiers[j] = task.Resources[j].resolve(t)
		}
		cmds.qualifiers = qualifiers

		naive, err := deriveBarriers(qualifiers, bufferSize, lastBufferAccess, lastImageAccess)
		if err != nil {
			return fmt.Errorf("deriving barriers for task %d: %w", i, err)
		}

		for _, barrier := range mergeBarriers(naive) {
			if err := cmds.PipelineBarrier(barrier); err != nil {
				return fmt.Errorf("recording barriers for task %d: %w", i, err)
			}
		}

		if task.Run != nil {
			if err := task.Run(t, cmds); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
		}
	}

	if err := g.device.endCommands(cb); err != nil {
		return fmt.Errorf("ending frame commands: %w", err)
	}

	if cmds.submit != nil {
		if err := g.submitFrame(cmds.submit, cb, fence, slot); err != nil {
			return err
		}
	}

	if cmds.present != nil {
		if g.swapchain == NullSwapchain {
			return fmt.Errorf("present requested on a headless graph")
		}
		wait, err := g.device.frameSemaphore(cmds.present.WaitSemaphore, slot)
		if err != nil {
			return fmt.Errorf("resolving present semaphore: %w", err)
		}
		if err := g.device.presentSwapchain(g.swapchain, wait); err != nil {
			return fmt.Errorf("presenting frame: %w", err)
		}
	}

	g.device.rotateFrame(g.swapchain)

	return nil
}

func (g *RenderGraph[T]) submitFrame(submit *Submit, cb *CommandBuffer, fence vk.Fence, slot int) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.VKCommandBuffer},
	}

	if submit.WaitSemaphore != nil {
		wait, err := g.device.frameSemaphore(*submit.WaitSemaphore, slot)
		if err != nil {
			return fmt.Errorf("resolving submit wait semaphore: %w", err)
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{wait}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	}

	if submit.SignalSemaphore != nil {
		signal, err := g.device.frameSemaphore(*submit.SignalSemaphore, slot)
		if err != nil {
			return fmt.Errorf("resolving submit signal semaphore: %w", err)
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{signal}
	}

	if err := g.device.queueSubmit(g.device.graphicsQueue(), submitInfo, fence); err != nil {
		return fmt.Errorf("submitting frame: %w", err)
	}
	return nil
}
