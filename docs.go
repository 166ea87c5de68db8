/*
Package boson implements a frame-pipelined render graph on top of the Vulkan
graphics framework for go. Vulkan hands the application full responsibility
for ordering GPU work: any two commands that touch the same buffer or image
must be separated by a pipeline barrier if one of them writes, and images
additionally have to be moved between layouts as their use changes. Getting
this wrong does not produce an error - it produces corruption, a hang, or a
lost device.

This package takes that responsibility off the application. The application
declares tasks - units of GPU work - together with the resources each task
touches and how it touches them. Every frame the graph resolves those
declarations against the application's own state, works out which accesses
conflict with the previous access to the same resource, derives the required
barriers and layout transitions, batches barriers that share a stage pair
into single commands, and records everything into a per-frame command buffer
in declaration order.

A graph is built once and rendered many times:

	builder := boson.NewRenderGraphBuilder[AppState](device, &boson.RenderGraphInfo{
		Swapchain: swapchain,
	})

	builder.Add(boson.Task[AppState]{
		Resources: []boson.Resource[AppState]{
			boson.BufferUse(func(s *AppState) boson.Buffer { return s.Particles },
				boson.BufferAccessComputeShaderReadWrite),
		},
		Run: func(s *AppState, cmd *boson.Commands) error {
			cmd.BindComputePipeline(s.Simulate)
			cmd.Dispatch(1024, 1, 1)
			cmd.Submit(boson.Submit{SignalSemaphore: &s.Done})
			return nil
		},
	})

	graph, err := builder.Complete()
	...
	for running {
		graph.Render(&state)
	}

Resources are declared through accessor functions rather than concrete
handles so that a graph built at startup can reference resources that do not
exist yet, such as swapchain images recreated on resize. The accessors are
invoked fresh every frame.

Render never blocks the caller. Up to FrameLag frames may be in flight on
the GPU; when the caller outruns the GPU, Render drops the frame and returns
immediately rather than stalling. Reuse of each per-frame command buffer is
gated solely on that frame slot's fence.

Resource creation goes through Device, which tracks every live buffer,
image, swapchain and semaphore in a handle table. When the device is created
with the Bindless option, the graph additionally refreshes a GPU-resident
address table at the start of every frame, so shaders can reach any live
buffer or image by handle without per-task descriptor plumbing.

Native Vulkan objects remain reachable throughout - structures expose their
vulkan counterparts with the VK prefix, and Commands.VK returns the raw
command buffer - so applications are not limited to what this package wraps.
*/
package boson
