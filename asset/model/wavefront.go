package model

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/board3d/board3d/asset"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/types"
)

// The color assigned to faces that do not reference a material.
var defaultDiffuse = types.Vec3{0.7, 0.7, 0.7}

type wavefrontMaterial struct {
	Name string

	// Diffuse/Albedo color.
	Kd types.Vec3

	// Dissolve factor; 1 is fully opaque.
	D float32
}

// Vertex key used to share vertices between faces of the same mesh.
type vertexKey struct {
	pos    int
	normal int
}

type meshBuilder struct {
	mesh     board.Mesh
	vertices map[vertexKey]uint32
}

type wavefrontReader struct {
	// A map of material names to parsed materials.
	materials map[string]*wavefrontMaterial

	// Currently selected material.
	curMaterial *wavefrontMaterial

	// Current object name.
	curObject string

	// Meshes in creation order; a new one starts on every object or
	// material switch.
	meshes  []*meshBuilder
	current *meshBuilder

	vertexList []types.Vec3
	normalList []types.Vec3

	// Error stack with frames for included material libraries.
	errStack []string
}

func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		materials: make(map[string]*wavefrontMaterial),
		curObject: "default",
	}
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	errMsg := strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	)
	return fmt.Errorf("%w: %s", ErrInvalidModel, errMsg)
}

// Parse a wavefront object into a model.
func (r *wavefrontReader) Read(res *asset.Resource) (*board.Model, error) {
	if err := r.parse(res); err != nil {
		return nil, err
	}

	m := &board.Model{Name: res.Path()}
	for _, mb := range r.meshes {
		if len(mb.mesh.Indices) == 0 {
			continue
		}
		// Drop normals when only some faces provided them
		if len(mb.mesh.Normals) != len(mb.mesh.Positions) {
			mb.mesh.Normals = nil
		}
		m.Meshes = append(m.Meshes, mb.mesh)
	}
	if len(m.Meshes) == 0 {
		return nil, fmt.Errorf("%w: %s contains no polygons", ErrInvalidModel, res.Path())
	}
	return m, nil
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	var lineNum int = 0

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "mtllib"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			r.errStack = append([]string{fmt.Sprintf("referenced from %s:%d [mtllib]", res.Path(), lineNum)}, r.errStack...)
			libRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			err = r.parseMaterials(libRes)
			libRes.Close()
			if err != nil {
				return err
			}
			r.errStack = r.errStack[1:]
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "usemtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			mat, exists := r.materials[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = mat
			r.current = nil
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.normalList = append(r.normalList, v.Normalize())
		case "g", "o":
			if len(lineTokens) >= 2 {
				r.curObject = lineTokens[1]
			}
			r.current = nil
		case "f":
			if err := r.parseFace(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		}
	}

	return scanner.Err()
}

// Get the mesh that receives faces for the current object and material.
func (r *wavefrontReader) curMesh() *meshBuilder {
	if r.current != nil {
		return r.current
	}

	mb := &meshBuilder{
		mesh: board.Mesh{
			Name:    r.curObject,
			Diffuse: defaultDiffuse,
		},
		vertices: make(map[vertexKey]uint32),
	}
	if r.curMaterial != nil {
		mb.mesh.Diffuse = r.curMaterial.Kd
		mb.mesh.Transparency = 1 - r.curMaterial.D
	}
	r.meshes = append(r.meshes, mb)
	r.current = mb
	return mb
}

// Parse a face definition. Each vertex argument uses one of the formats:
// v, v/vt, v//vn, v/vt/vn. Indices start from 1 and may be negative to
// reference elements from the end of the list. Polygons with more than three
// vertices are triangulated as a fan.
func (r *wavefrontReader) parseFace(lineTokens []string) error {
	if len(lineTokens) < 4 {
		return fmt.Errorf(`unsupported syntax for "f"; expected at least 3 arguments; got %d`, len(lineTokens)-1)
	}

	mb := r.curMesh()
	corners := make([]uint32, 0, len(lineTokens)-1)
	for arg := 1; arg < len(lineTokens); arg++ {
		vTokens := strings.Split(lineTokens[arg], "/")
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg-1)
		}

		key := vertexKey{pos: -1, normal: -1}
		var err error
		key.pos, err = selectFaceCoordIndex(vTokens[0], len(r.vertexList))
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg-1, err.Error())
		}
		if len(vTokens) > 2 && vTokens[2] != "" {
			key.normal, err = selectFaceCoordIndex(vTokens[2], len(r.normalList))
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg-1, err.Error())
			}
		}

		index, exists := mb.vertices[key]
		if !exists {
			index = uint32(len(mb.mesh.Positions))
			mb.mesh.Positions = append(mb.mesh.Positions, r.vertexList[key.pos])
			if key.normal >= 0 {
				mb.mesh.Normals = append(mb.mesh.Normals, r.normalList[key.normal])
			}
			mb.vertices[key] = index
		}
		corners = append(corners, index)
	}

	for i := 1; i+1 < len(corners); i++ {
		mb.mesh.Indices = append(mb.mesh.Indices, corners[0], corners[i], corners[i+1])
	}
	return nil
}

// Parse a wavefront material library.
func (r *wavefrontReader) parseMaterials(res *asset.Resource) error {
	var lineNum int = 0
	var err error
	var curMaterial *wavefrontMaterial

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			curMaterial = &wavefrontMaterial{Name: lineTokens[1], Kd: defaultDiffuse, D: 1}
			r.materials[curMaterial.Name] = curMaterial
			continue
		}

		if curMaterial == nil {
			return r.emitError(res.Path(), lineNum, `got "%s" without a "newmtl"`, lineTokens[0])
		}

		switch lineTokens[0] {
		case "Kd":
			curMaterial.Kd, err = parseVec3(lineTokens)
		case "d":
			curMaterial.D, err = parseFloat32(lineTokens)
		case "Tr":
			var tr float32
			tr, err = parseFloat32(lineTokens)
			curMaterial.D = 1 - tr
		}

		if err != nil {
			return r.emitError(res.Path(), lineNum, "%s", err.Error())
		}
		curMaterial.D = types.Clamp(curMaterial.D, 0, 1)
	}

	return scanner.Err()
}

// Given an index for a face coord type calculate the offset into the coord
// list. Negative indices reference elements from the end of the list.
func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int = 0
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = int(index - 1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
