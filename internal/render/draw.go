package render

import "github.com/fhengine/firehead/internal/scene"

// DrawCall is one CmdDrawIndexed, with fields typed as the command takes them.
type DrawCall struct {
	IndexCount    int
	InstanceCount int
	FirstIndex    uint32
	VertexOffset  int
	FirstInstance uint32
}

// DrawCalls issues one instanced draw per model. Without instancing every
// instance gets a draw of its own; firstInstanceOnly keeps only the first
// instance of each model.
func DrawCalls(models []*scene.Model, instancing, firstInstanceOnly bool) []DrawCall {
	var calls []DrawCall
	for _, m := range models {
		instances := len(m.Transforms)
		if instances == 0 {
			continue
		}
		if firstInstanceOnly {
			instances = 1
		}

		call := DrawCall{
			IndexCount:    len(m.Indices),
			InstanceCount: instances,
			FirstIndex:    uint32(m.FirstIndex),
			VertexOffset:  m.VertexOffset,
			FirstInstance: uint32(m.FirstInstance),
		}
		if instancing {
			calls = append(calls, call)
			continue
		}

		for i := 0; i < instances; i++ {
			single := call
			single.InstanceCount = 1
			single.FirstInstance = uint32(m.FirstInstance + i)
			calls = append(calls, single)
		}
	}
	return calls
}
