package assets

import (
	"io"
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/fhengine/firehead/internal/scene"
)

// LoadModel decodes a Wavefront obj file. The sibling .mtl file is optional.
func LoadModel(fsys fs.FS, name string) (scene.Mesh, error) {
	meshFile, err := fsys.Open(name)
	if err != nil {
		return scene.Mesh{}, errors.Wrapf(err, "load model %s", name)
	}
	defer meshFile.Close()

	var matReader io.Reader = strings.NewReader("")
	matFile, err := fsys.Open(strings.TrimSuffix(name, ".obj") + ".mtl")
	if err == nil {
		defer matFile.Close()
		matReader = matFile
	}

	decoder, err := obj.DecodeReader(meshFile, matReader)
	if err != nil {
		return scene.Mesh{}, errors.Wrapf(err, "decode model %s", name)
	}

	mesh, err := buildMesh(decoder)
	if err != nil {
		return scene.Mesh{}, errors.Wrapf(err, "model %s", name)
	}
	return mesh, nil
}

type meshBuilder struct {
	decoder *obj.Decoder
	unique  map[scene.Vertex]uint32
	mesh    scene.Mesh
}

func buildMesh(decoder *obj.Decoder) (scene.Mesh, error) {
	b := &meshBuilder{decoder: decoder, unique: make(map[scene.Vertex]uint32)}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			// Triangulate as a fan.
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					if err := b.addVertex(face, corner); err != nil {
						return scene.Mesh{}, err
					}
				}
			}
		}
	}

	if len(b.mesh.Indices) == 0 {
		return scene.Mesh{}, errors.New("no faces")
	}
	return b.mesh, nil
}

func (b *meshBuilder) addVertex(face obj.Face, corner int) error {
	vertInd := face.Vertices[corner]
	if vertInd < 0 || vertInd*3+2 >= len(b.decoder.Vertices) {
		return errors.Newf("vertex index %d out of range", vertInd)
	}

	vert := scene.Vertex{
		Position: mgl32.Vec3{
			b.decoder.Vertices[vertInd*3],
			b.decoder.Vertices[vertInd*3+1],
			b.decoder.Vertices[vertInd*3+2],
		},
		Color: mgl32.Vec3{1, 1, 1},
	}

	if corner < len(face.Uvs) {
		uvInd := face.Uvs[corner]
		if uvInd >= 0 && uvInd*2+1 < len(b.decoder.Uvs) {
			vert.TexCoord = mgl32.Vec2{
				b.decoder.Uvs[uvInd*2],
				1.0 - b.decoder.Uvs[uvInd*2+1],
			}
		}
	}

	index, exists := b.unique[vert]
	if !exists {
		index = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, vert)
		b.unique[vert] = index
	}

	b.mesh.Indices = append(b.mesh.Indices, index)
	return nil
}
