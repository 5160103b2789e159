package mock

import (
	"context"
	"crypto/sha256"
	"math"
	"strings"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

const (
	embeddingDimension = 512
	minFrameSize       = 100
)

// Scene is what the mock backend reports for every frame until changed
type Scene struct {
	FaceCount int
	Pose      detector.Pose
	// Participant seeds the identity embedding; frames of the same
	// participant always match.
	Participant string
	Objects     []detector.Object
}

// DefaultScene: one participant looking at the camera, nothing else in view
func DefaultScene() Scene {
	return Scene{
		FaceCount:   1,
		Participant: "participant",
	}
}

// Provider implementa todos os detectores de frame para testes e desenvolvimento
type Provider struct {
	mu    sync.RWMutex
	scene Scene
	gaze  *detector.PoseGaze
}

// New cria uma nova instância do mock com a cena padrão
func New() *Provider {
	return &Provider{
		scene: DefaultScene(),
		gaze:  detector.NewPoseGaze(detector.DefaultGazeAngleLimit),
	}
}

// SetScene troca a cena reportada a partir do próximo frame
func (p *Provider) SetScene(s Scene) {
	p.mu.Lock()
	p.scene = s
	p.mu.Unlock()
}

func (p *Provider) current() Scene {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scene
}

// Set returns the provider wired into every frame detector slot
func (p *Provider) Set() detector.Set {
	return detector.Set{
		Faces:      p,
		Encoder:    p,
		Comparator: detector.NewCosineComparator(detector.DefaultMatchThreshold),
		Gaze:       p.gaze,
		Objects:    p,
	}
}

// LocateFaces reports Scene.FaceCount faces side by side
func (p *Provider) LocateFaces(_ context.Context, frame []byte) ([]detector.Face, error) {
	if len(frame) < minFrameSize {
		return nil, domain.ErrInvalidImage
	}

	s := p.current()
	faces := make([]detector.Face, 0, s.FaceCount)
	for i := 0; i < s.FaceCount; i++ {
		width := 0.8 / float64(s.FaceCount)
		pose := s.Pose
		faces = append(faces, detector.Face{
			Box: detector.BoundingBox{
				X:      0.1 + float64(i)*width,
				Y:      0.1,
				Width:  width,
				Height: 0.8,
			},
			Confidence: 0.99,
			Pose:       &pose,
		})
	}

	return faces, nil
}

// EncodeIdentity gera embedding determinístico a partir do participante da cena
func (p *Provider) EncodeIdentity(_ context.Context, frame []byte, _ detector.Face) (detector.Identity, error) {
	if len(frame) < minFrameSize {
		return detector.Identity{}, domain.ErrInvalidImage
	}

	s := p.current()
	if s.Participant == "" {
		return detector.Identity{}, detector.ErrNoEmbedding
	}

	return detector.Identity{Vector: generateEmbedding([]byte(s.Participant))}, nil
}

// ClassifyObjects returns the scene objects with lower-cased labels
func (p *Provider) ClassifyObjects(_ context.Context, frame []byte) ([]detector.Object, error) {
	if len(frame) < minFrameSize {
		return nil, domain.ErrInvalidImage
	}

	s := p.current()
	objects := make([]detector.Object, len(s.Objects))
	for i, o := range s.Objects {
		o.Label = strings.ToLower(o.Label)
		objects[i] = o
	}

	return objects, nil
}

// generateEmbedding gera embedding determinístico baseado no hash da semente
func generateEmbedding(seed []byte) []float64 {
	hash := sha256.Sum256(seed)
	embedding := make([]float64, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var (
	_ detector.FaceLocator      = (*Provider)(nil)
	_ detector.IdentityEncoder  = (*Provider)(nil)
	_ detector.ObjectClassifier = (*Provider)(nil)
)
