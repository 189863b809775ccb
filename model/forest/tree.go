// Copyright 2026 pricer Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package forest

import (
	"math"
	"slices"

	"github.com/alugaai/pricer/base"
)

const leaf = -1

// Node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a CART regression tree stored as a flat list of nodes. The root is Nodes[0].
type Tree struct {
	Nodes []Node
}

// Predict walks the tree down to a leaf.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for t.Nodes[i].Feature != leaf {
		if x[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// Validate checks that splits read features below numFeatures and that
// children follow their parent, so every walk ends at a leaf.
func (t *Tree) Validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return base.Errorf(base.ErrArtifactCorrupt, "tree has no nodes")
	}
	for i, node := range t.Nodes {
		if node.Feature == leaf {
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return base.Errorf(base.ErrArtifactCorrupt, "node %d splits on feature %d of %d", i, node.Feature, numFeatures)
		}
		if node.Left <= i || node.Left >= len(t.Nodes) || node.Right <= i || node.Right >= len(t.Nodes) {
			return base.Errorf(base.ErrArtifactCorrupt, "node %d has children %d and %d out of range", i, node.Left, node.Right)
		}
	}
	return nil
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var depth func(i int) int
	depth = func(i int) int {
		if t.Nodes[i].Feature == leaf {
			return 0
		}
		return 1 + max(depth(t.Nodes[i].Left), depth(t.Nodes[i].Right))
	}
	return depth(0)
}

type treeBuilder struct {
	x               [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	nodes           []Node
	sorted          []int
}

func buildTree(x [][]float64, y []float64, samples []int, maxDepth, minSamplesSplit, minSamplesLeaf int) *Tree {
	b := &treeBuilder{
		x:               x,
		y:               y,
		maxDepth:        maxDepth,
		minSamplesSplit: max(minSamplesSplit, 2),
		minSamplesLeaf:  max(minSamplesLeaf, 1),
		sorted:          make([]int, len(samples)),
	}
	b.build(samples, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(samples []int, depth int) int {
	id := len(b.nodes)
	var sum float64
	for _, s := range samples {
		sum += b.y[s]
	}
	n := len(samples)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: sum / float64(n)})
	if n < b.minSamplesSplit || n < 2*b.minSamplesLeaf {
		return id
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return id
	}
	if b.constant(samples) {
		return id
	}
	feature, threshold, ok := b.split(samples, sum)
	if !ok {
		return id
	}
	// partition samples in place
	k := 0
	for i, s := range samples {
		if b.x[s][feature] <= threshold {
			samples[i], samples[k] = samples[k], samples[i]
			k++
		}
	}
	left := b.build(samples[:k], depth+1)
	right := b.build(samples[k:], depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = left
	b.nodes[id].Right = right
	return id
}

func (b *treeBuilder) constant(samples []int) bool {
	for _, s := range samples[1:] {
		if b.y[s] != b.y[samples[0]] {
			return false
		}
	}
	return true
}

// split finds the split minimizing the summed squared error of both children,
// which is the split maximizing sumL²/nL + sumR²/nR.
func (b *treeBuilder) split(samples []int, sum float64) (int, float64, bool) {
	n := len(samples)
	sorted := b.sorted[:n]
	bestFeature, bestThreshold, bestProxy := leaf, 0.0, math.Inf(-1)
	for feature := range b.x[samples[0]] {
		copy(sorted, samples)
		slices.SortFunc(sorted, func(i, j int) int {
			switch {
			case b.x[i][feature] < b.x[j][feature]:
				return -1
			case b.x[i][feature] > b.x[j][feature]:
				return 1
			}
			return i - j
		})
		var sumLeft float64
		for i := 0; i < n-1; i++ {
			sumLeft += b.y[sorted[i]]
			current, next := b.x[sorted[i]][feature], b.x[sorted[i+1]][feature]
			if current == next {
				continue
			}
			nLeft, nRight := i+1, n-i-1
			if nLeft < b.minSamplesLeaf || nRight < b.minSamplesLeaf {
				continue
			}
			sumRight := sum - sumLeft
			proxy := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if proxy > bestProxy {
				bestProxy = proxy
				bestFeature = feature
				bestThreshold = current + (next-current)/2
				if bestThreshold == next {
					bestThreshold = current
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature != leaf
}
