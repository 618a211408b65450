package core

import (
	"slices"
)

// Node is anything the scene graph can hold.
type Node interface {
	NodeID() AssetId
}

type FogExp2 struct {
	Color   [3]float32
	Density float32
}

type Scene struct {
	Fog      *FogExp2
	children []Node
}

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) Add(nodes ...Node) {
	s.children = append(s.children, nodes...)
}

// Remove detaches the node with the given id. Returns false if absent.
func (s *Scene) Remove(id AssetId) bool {
	i := slices.IndexFunc(s.children, func(n Node) bool { return n.NodeID() == id })
	if i < 0 {
		return false
	}
	s.children = slices.Delete(s.children, i, i+1)
	return true
}

func (s *Scene) Children() []Node {
	return s.children
}

// PointClouds returns the Points nodes in insertion order.
func (s *Scene) PointClouds() []*Points {
	var out []*Points
	for _, n := range s.children {
		if p, ok := n.(*Points); ok {
			out = append(out, p)
		}
	}
	return out
}

// HexColor converts 0xRRGGBB into normalized RGB.
func HexColor(hex uint32) [3]float32 {
	return [3]float32{
		float32((hex>>16)&0xff) / 255.0,
		float32((hex>>8)&0xff) / 255.0,
		float32(hex&0xff) / 255.0,
	}
}
