package model3d

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/qmuntal/gltf"
)

var (
	ErrNotGLB        = errors.New("asset is not a binary glTF file")
	ErrNoGeometry    = errors.New("asset has no mesh geometry")
	ErrMissingBounds = errors.New("POSITION accessor has no min/max")
)

const positionAttribute = "POSITION"

var glbMagic = []byte("glTF")

// IsGLB reports whether data starts with the binary glTF magic.
func IsGLB(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], glbMagic)
}

// LoadGLB decodes a binary glTF document.
func LoadGLB(r io.Reader) (*gltf.Document, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil || !IsGLB(head) {
		return nil, ErrNotGLB
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(br).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode glb: %w", err)
	}
	return doc, nil
}

// SceneBounds returns the world-space bounds of the document's default scene
// (or of the first scene when none is marked default).
func SceneBounds(doc *gltf.Document) (Box3, error) {
	if doc == nil || len(doc.Scenes) == 0 {
		return Box3{}, ErrNoGeometry
	}
	sceneIdx := 0
	if i, ok := index(doc.Scene); ok && i < len(doc.Scenes) {
		sceneIdx = i
	}

	box := EmptyBox()
	visited := make(map[int]bool)
	for _, root := range indices(doc.Scenes[sceneIdx].Nodes) {
		nb, err := nodeBounds(doc, root, Identity(), visited)
		if err != nil {
			return Box3{}, err
		}
		box = box.Union(nb)
	}
	if box.Empty() {
		return Box3{}, ErrNoGeometry
	}
	return box, nil
}

func nodeBounds(doc *gltf.Document, idx int, parent Mat4, visited map[int]bool) (Box3, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return Box3{}, fmt.Errorf("node %d out of range", idx)
	}
	if visited[idx] {
		return Box3{}, fmt.Errorf("node %d visited twice", idx)
	}
	visited[idx] = true

	node := doc.Nodes[idx]
	world := Mul(parent, localMatrix(node))

	box := EmptyBox()
	if meshIdx, ok := index(node.Mesh); ok {
		if meshIdx >= len(doc.Meshes) {
			return Box3{}, fmt.Errorf("mesh %d out of range", meshIdx)
		}
		for _, prim := range doc.Meshes[meshIdx].Primitives {
			accIdx, ok := attribute(prim.Attributes, positionAttribute)
			if !ok {
				continue
			}
			if accIdx >= len(doc.Accessors) {
				return Box3{}, fmt.Errorf("accessor %d out of range", accIdx)
			}
			local, err := accessorBounds(doc.Accessors[accIdx])
			if err != nil {
				return Box3{}, fmt.Errorf("mesh %d: %w", meshIdx, err)
			}
			box = box.Union(local.Transform(world))
		}
	}

	for _, child := range indices(node.Children) {
		cb, err := nodeBounds(doc, child, world, visited)
		if err != nil {
			return Box3{}, err
		}
		box = box.Union(cb)
	}
	return box, nil
}

func localMatrix(node *gltf.Node) Mat4 {
	m := FromColumnMajor(arr16(node.Matrix))
	if !m.IsZero() && m != Identity() {
		return m
	}

	scale := arr3(node.Scale)
	if scale == [3]float64{} {
		scale = [3]float64{1, 1, 1}
	}
	rot := arr4(node.Rotation)
	if rot == [4]float64{} {
		rot = [4]float64{0, 0, 0, 1}
	}
	return TRS(arr3(node.Translation), rot, scale)
}

func accessorBounds(acc *gltf.Accessor) (Box3, error) {
	lo, okMin := vec3(acc.Min)
	hi, okMax := vec3(acc.Max)
	if !okMin || !okMax {
		return Box3{}, ErrMissingBounds
	}
	return NewBox(lo, hi), nil
}

func vec3(v []float32) (r3.Vector, bool) {
	if len(v) < 3 {
		return r3.Vector{}, false
	}
	return r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}, true
}

func arr3(a [3]float32) [3]float64 {
	return [3]float64{float64(a[0]), float64(a[1]), float64(a[2])}
}

func arr4(a [4]float32) [4]float64 {
	return [4]float64{float64(a[0]), float64(a[1]), float64(a[2]), float64(a[3])}
}

func arr16(a [16]float32) [16]float64 {
	var out [16]float64
	for i, v := range a {
		out[i] = float64(v)
	}
	return out
}

func index(p *uint32) (int, bool) {
	if p == nil {
		return 0, false
	}
	return int(*p), true
}

func indices(s []uint32) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

func attribute(attrs gltf.Attribute, name string) (int, bool) {
	v, ok := attrs[name]
	return int(v), ok
}
