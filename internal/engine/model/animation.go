package model

import "math"

// AnimationState holds the three playback counters of an animated model and
// their accumulated time in seconds. The zero value is the reset state.
type AnimationState struct {
	TextureIndex int
	ModelIndex   int
	MeshIndex    int

	TextureTime float64
	ModelTime   float64
	MeshTime    float64
}

// Reset zeroes every index and time accumulator.
func (s *AnimationState) Reset() {
	*s = AnimationState{}
}

// UpdateIndex advances the counters by elapsed seconds and returns the
// indices to render.
//
// Textures cycle whenever the model has more than one. A model whose current
// frame holds several timed meshes cycles through those meshes and skips
// frame selection for this tick. Otherwise the model index steps through the
// selected animation at fps frames per second. An unusable model, animation
// index, frame rate or animation range resets the whole state.
func (s *AnimationState) UpdateIndex(m *MDLModel, fps, animationIndex int, elapsed float64) (textureIndex, modelIndex, meshIndex int) {
	s.update(m, fps, animationIndex, elapsed)
	return s.TextureIndex, s.ModelIndex, s.MeshIndex
}

func (s *AnimationState) update(m *MDLModel, fps, animationIndex int, elapsed float64) {
	if m == nil {
		s.Reset()
		return
	}

	if n := len(m.Textures); n > 1 {
		s.TextureIndex, s.TextureTime = advanceCycle(s.TextureIndex, s.TextureTime+elapsed, n,
			func(i int) float64 { return m.Textures[i].Time })
	}

	mesh := m.GetMesh(s.ModelIndex, s.MeshIndex)
	if mesh == nil {
		s.Reset()
		return
	}

	// GetMesh validated ModelIndex.
	if meshes := m.Models[s.ModelIndex].Meshes; len(meshes) > 1 && mesh.Time != 0 {
		s.MeshIndex, s.MeshTime = advanceCycle(s.MeshIndex, s.MeshTime+elapsed, len(meshes),
			func(i int) float64 { return meshes[i].Time })
		return
	}

	if animationIndex < 0 || animationIndex >= len(m.Animations) || fps <= 0 {
		s.Reset()
		return
	}

	anim := m.Animations[animationIndex]
	length := anim.Len()
	if length == 0 {
		s.Reset()
		return
	}

	s.ModelTime += elapsed
	interval := 1.0 / float64(fps)

	// A whole pass over the animation leaves the index unchanged.
	if cycle := interval * float64(length); s.ModelTime >= cycle {
		s.ModelTime = math.Mod(s.ModelTime, cycle)
	}

	index := wrapIndex(s.ModelIndex-anim.Start, length)
	for s.ModelTime >= interval {
		s.ModelTime -= interval
		index = (index + 1) % length
	}
	s.ModelIndex = anim.Start + index
}

// advanceCycle moves index through a cycle of n timed entries while acc
// covers the duration of the current one, and returns the new index and the
// time left over. An entry without a positive duration stops the cycle.
// Whole laps are removed first, so at most n entries are visited.
func advanceCycle(index int, acc float64, n int, duration func(int) float64) (int, float64) {
	index = wrapIndex(index, n)

	var lap float64
	for i := 0; i < n; i++ {
		d := duration(i)
		if !(d > 0) || math.IsInf(d, 0) {
			lap = 0
			break
		}
		lap += d
	}
	if lap > 0 && !math.IsInf(lap, 0) && acc >= lap {
		acc = math.Mod(acc, lap)
	}

	for range n {
		d := duration(index)
		if !(d > 0) || !(acc >= d) {
			break
		}
		acc -= d
		index = (index + 1) % n
	}
	return index, acc
}

// wrapIndex maps i into [0, n) for any sign of i.
func wrapIndex(i, n int) int {
	return (i%n + n) % n
}
