// Package fbx reads binary FBX 7.x files and extracts their mesh geometry.
package fbx

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	BinaryMagic = "Kaydara FBX Binary  \x00"

	headerSize = len(BinaryMagic) + 2 + 4
	// Files from version 7500 on use 64-bit record offsets.
	wideVersion = 7500
)

var (
	ErrNotFBX        = errors.New("fbx: not an FBX file")
	ErrASCII         = errors.New("fbx: ASCII FBX is not supported")
	ErrArrayTooLarge = errors.New("fbx: array too large")
)

type Property struct {
	Type  byte
	Value any
}

type Node struct {
	Name       string
	Properties []Property
	Children   []*Node
}

type Document struct {
	Version uint32
	Nodes   []*Node
}

// Parse reads a whole binary FBX document.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize || string(data[:len(BinaryMagic)]) != BinaryMagic {
		if isASCII(data) {
			return nil, ErrASCII
		}
		return nil, ErrNotFBX
	}

	p := &parser{data: data, off: headerSize}
	doc := &Document{Version: binary.LittleEndian.Uint32(data[headerSize-4 : headerSize])}
	p.wide = doc.Version >= wideVersion

	for p.off+p.recordHeaderSize() <= len(data) {
		n, err := p.readNode()
		if err != nil {
			return nil, err
		}
		if n == nil {
			break
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	return doc, nil
}

func isASCII(data []byte) bool {
	head := string(data[:min(len(data), 256)])
	return strings.Contains(head, "FBXHeaderExtension") || strings.HasPrefix(strings.TrimSpace(head), "; FBX")
}

type parser struct {
	data []byte
	off  int
	wide bool
}

func (p *parser) recordHeaderSize() int {
	if p.wide {
		return 25
	}
	return 13
}

func (p *parser) need(n int) error {
	if n < 0 || p.off+n > len(p.data) {
		return fmt.Errorf("fbx: unexpected end of data at offset %d", p.off)
	}
	return nil
}

func (p *parser) u8() (uint8, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.data[p.off]
	p.off++
	return v, nil
}

func (p *parser) u32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(p.data[p.off:])
	p.off += 4
	return v, nil
}

func (p *parser) u64() (uint64, error) {
	if err := p.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(p.data[p.off:])
	p.off += 8
	return v, nil
}

func (p *parser) offset() (uint64, error) {
	if p.wide {
		return p.u64()
	}
	v, err := p.u32()
	return uint64(v), err
}

func (p *parser) bytes(n int) ([]byte, error) {
	if err := p.need(n); err != nil {
		return nil, err
	}
	b := p.data[p.off : p.off+n]
	p.off += n
	return b, nil
}

// readNode returns nil at a null record.
func (p *parser) readNode() (*Node, error) {
	endOffset, err := p.offset()
	if err != nil {
		return nil, err
	}
	numProps, err := p.offset()
	if err != nil {
		return nil, err
	}
	propLen, err := p.offset()
	if err != nil {
		return nil, err
	}
	nameLen, err := p.u8()
	if err != nil {
		return nil, err
	}
	if endOffset == 0 {
		return nil, nil
	}
	if endOffset > uint64(len(p.data)) || endOffset < uint64(p.off) {
		return nil, fmt.Errorf("fbx: record end offset %d out of range", endOffset)
	}

	name, err := p.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	n := &Node{Name: string(name)}

	propsStart := p.off
	for i := uint64(0); i < numProps; i++ {
		prop, err := p.readProperty()
		if err != nil {
			return nil, fmt.Errorf("fbx: node %s: %w", n.Name, err)
		}
		n.Properties = append(n.Properties, prop)
	}
	if uint64(p.off-propsStart) != propLen {
		return nil, fmt.Errorf("fbx: node %s: property list length %d, read %d", n.Name, propLen, p.off-propsStart)
	}

	end := int(endOffset)
	for p.off < end {
		child, err := p.readNode()
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		n.Children = append(n.Children, child)
	}
	p.off = end
	return n, nil
}

func (p *parser) readProperty() (Property, error) {
	typ, err := p.u8()
	if err != nil {
		return Property{}, err
	}
	prop := Property{Type: typ}

	switch typ {
	case 'Y':
		b, err := p.bytes(2)
		if err != nil {
			return prop, err
		}
		prop.Value = int16(binary.LittleEndian.Uint16(b))
	case 'C':
		b, err := p.u8()
		if err != nil {
			return prop, err
		}
		prop.Value = b != 0
	case 'I':
		v, err := p.u32()
		if err != nil {
			return prop, err
		}
		prop.Value = int32(v)
	case 'F':
		v, err := p.u32()
		if err != nil {
			return prop, err
		}
		prop.Value = math.Float32frombits(v)
	case 'D':
		v, err := p.u64()
		if err != nil {
			return prop, err
		}
		prop.Value = math.Float64frombits(v)
	case 'L':
		v, err := p.u64()
		if err != nil {
			return prop, err
		}
		prop.Value = int64(v)
	case 'S', 'R':
		n, err := p.u32()
		if err != nil {
			return prop, err
		}
		b, err := p.bytes(int(n))
		if err != nil {
			return prop, err
		}
		if typ == 'S' {
			prop.Value = string(b)
		} else {
			prop.Value = append([]byte(nil), b...)
		}
	case 'f', 'd', 'l', 'i', 'b':
		v, err := p.readArray(typ)
		if err != nil {
			return prop, err
		}
		prop.Value = v
	default:
		return prop, fmt.Errorf("unknown property type %q", typ)
	}
	return prop, nil
}

const (
	maxArrayBytes = 1 << 28
	// deflate cannot expand input by more than about 1032:1
	maxDeflateRatio = 1032
)

func (p *parser) readArray(typ byte) (any, error) {
	count, err := p.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := p.u32()
	if err != nil {
		return nil, err
	}
	compLen, err := p.u32()
	if err != nil {
		return nil, err
	}
	raw, err := p.bytes(int(compLen))
	if err != nil {
		return nil, err
	}

	elem := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[typ]
	want := int(count) * elem

	switch encoding {
	case 0:
	case 1:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if want > maxArrayBytes || want > len(raw)*maxDeflateRatio {
			return nil, fmt.Errorf("%w: array of %d elements from %d compressed bytes", ErrArrayTooLarge, count, len(raw))
		}
		buf, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
		if err != nil {
			return nil, fmt.Errorf("inflate array: %w", err)
		}
		if len(buf) != want {
			return nil, fmt.Errorf("inflate array: %d bytes, want %d", len(buf), want)
		}
		raw = buf
	default:
		return nil, fmt.Errorf("unknown array encoding %d", encoding)
	}
	if len(raw) < want {
		return nil, fmt.Errorf("array of %d elements holds %d bytes", count, len(raw))
	}

	le := binary.LittleEndian
	switch typ {
	case 'f':
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[i*4:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(le.Uint32(raw[i*4:]))
		}
		return out, nil
	default:
		out := make([]bool, count)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	}
}

func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (d *Document) Node(name string) *Node {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Floats widens f and d arrays and scalar numbers to float64.
func (p Property) Floats() ([]float64, bool) {
	switch v := p.Value.(type) {
	case []float64:
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, true
	case float64:
		return []float64{v}, true
	case float32:
		return []float64{float64(v)}, true
	}
	return nil, false
}

// Ints widens i and l arrays and scalar integers to int64.
func (p Property) Ints() ([]int64, bool) {
	switch v := p.Value.(type) {
	case []int64:
		return v, true
	case []int32:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case int64:
		return []int64{v}, true
	case int32:
		return []int64{int64(v)}, true
	case int16:
		return []int64{int64(v)}, true
	}
	return nil, false
}

func (p Property) String() string {
	s, _ := p.Value.(string)
	return s
}

// objectName strips the "\x00\x01Class" suffix binary FBX appends to names.
func objectName(s string) string {
	if i := strings.Index(s, "\x00\x01"); i >= 0 {
		return s[:i]
	}
	return s
}
