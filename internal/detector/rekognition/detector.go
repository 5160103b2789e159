package rekognition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	providerName = "rekognition"
)

// Rekognition reports phones under several labels
var phoneLabels = map[string]struct{}{
	"cell phone":   {},
	"mobile phone": {},
	"phone":        {},
}

// Detector implements the frame detectors using AWS Rekognition.
// Identities are image based: the baseline keeps the frame it was bound on
// and later frames are compared with CompareFaces.
type Detector struct {
	client         *Client
	matchThreshold float64
	auditLogger    audit.Logger
}

// Option defines optional configuration for Detector
type Option func(*Detector)

// WithAuditLogger sets the audit logger for the detector
func WithAuditLogger(logger audit.Logger) Option {
	return func(d *Detector) {
		d.auditLogger = logger
	}
}

// WithMatchThreshold sets the CompareFaces similarity threshold (0..1)
func WithMatchThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.matchThreshold = threshold
		}
	}
}

// New creates a Rekognition backed detector
func New(ctx context.Context, cfg Config, opts ...Option) (*Detector, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return newDetector(client, opts...), nil
}

func newDetector(client *Client, opts ...Option) *Detector {
	d := &Detector{
		client:         client,
		matchThreshold: detector.DefaultMatchThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Set wires every frame detector; gaze comes from the DetectFaces pose
func (d *Detector) Set(gazeLimit float64) detector.Set {
	return detector.Set{
		Faces:      d,
		Encoder:    d,
		Comparator: d,
		Gaze:       detector.NewPoseGaze(gazeLimit),
		Objects:    d,
	}
}

// logAudit logs an audit event if an audit logger is configured
// Audit failure does not affect the operation (fire-and-forget)
func (d *Detector) logAudit(ctx context.Context, eventType audit.EventType, success bool, err error, metadata map[string]string) {
	if d.auditLogger == nil {
		return
	}

	event := audit.Event{
		SessionID: audit.SessionIDFromContext(ctx),
		EventType: eventType,
		Provider:  providerName,
		Success:   success,
		Metadata:  metadata,
	}

	if err != nil {
		event.Error = err.Error()
	}

	_ = d.auditLogger.Log(ctx, event)
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// LocateFaces calls DetectFaces with all attributes so each face carries its pose.
// No faces is an empty slice, not an error.
func (d *Detector) LocateFaces(ctx context.Context, frame []byte) ([]detector.Face, error) {
	if err := validateImage(frame); err != nil {
		d.logAudit(ctx, audit.EventFacesLocated, false, err, map[string]string{
			"image_size": strconv.Itoa(len(frame)),
		})
		return nil, err
	}

	output, err := d.client.rekognition.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: frame},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		err = parseAPIError(err)
		d.logAudit(ctx, audit.EventFacesLocated, false, err, map[string]string{
			"image_size": strconv.Itoa(len(frame)),
		})
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]detector.Face, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		face := detector.Face{
			Box:        convertBox(detail.BoundingBox),
			Confidence: float64(aws.ToFloat32(detail.Confidence)) / 100.0,
		}
		if detail.Pose != nil {
			face.Pose = &detector.Pose{
				Pitch: float64(aws.ToFloat32(detail.Pose.Pitch)),
				Roll:  float64(aws.ToFloat32(detail.Pose.Roll)),
				Yaw:   float64(aws.ToFloat32(detail.Pose.Yaw)),
			}
		}
		faces = append(faces, face)
	}

	d.logAudit(ctx, audit.EventFacesLocated, true, nil, map[string]string{
		"faces_count": strconv.Itoa(len(faces)),
		"image_size":  strconv.Itoa(len(frame)),
	})

	return faces, nil
}

// EncodeIdentity keeps the frame itself; Rekognition does not expose embeddings
func (d *Detector) EncodeIdentity(_ context.Context, frame []byte, _ detector.Face) (detector.Identity, error) {
	if err := validateImage(frame); err != nil {
		return detector.Identity{}, err
	}
	image := make([]byte, len(frame))
	copy(image, frame)
	return detector.Identity{Image: image}, nil
}

// IdentitiesMatch compares the largest face of the baseline frame with the faces
// of the candidate frame
func (d *Detector) IdentitiesMatch(ctx context.Context, baseline, candidate detector.Identity) (bool, error) {
	if len(baseline.Image) == 0 || len(candidate.Image) == 0 {
		return false, detector.ErrNoEmbedding
	}

	output, err := d.client.rekognition.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: baseline.Image},
		TargetImage:         &types.Image{Bytes: candidate.Image},
		SimilarityThreshold: aws.Float32(float32(d.matchThreshold * 100)),
	})
	if err != nil {
		err = parseAPIError(err)
		d.logAudit(ctx, audit.EventIdentityCompared, false, err, nil)
		return false, fmt.Errorf("compare faces: %w", err)
	}

	var best float64
	for _, m := range output.FaceMatches {
		if s := float64(aws.ToFloat32(m.Similarity)) / 100.0; s > best {
			best = s
		}
	}
	matched := best >= d.matchThreshold

	d.logAudit(ctx, audit.EventIdentityCompared, true, nil, map[string]string{
		"similarity": fmt.Sprintf("%.4f", best),
		"matched":    strconv.FormatBool(matched),
	})

	return matched, nil
}

// ClassifyObjects calls DetectLabels. Labels with instances yield one object per
// instance; phone labels are reported as "cell phone".
func (d *Detector) ClassifyObjects(ctx context.Context, frame []byte) ([]detector.Object, error) {
	if err := validateImage(frame); err != nil {
		return nil, err
	}

	input := &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: frame},
		MinConfidence: aws.Float32(d.client.config.MinLabelConfidence),
	}
	if d.client.config.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(d.client.config.MaxLabels)
	}

	output, err := d.client.rekognition.DetectLabels(ctx, input)
	if err != nil {
		err = parseAPIError(err)
		d.logAudit(ctx, audit.EventObjectsClassified, false, err, nil)
		return nil, fmt.Errorf("detect labels: %w", err)
	}

	var objects []detector.Object
	for _, label := range output.Labels {
		name := normalizeLabel(aws.ToString(label.Name))
		if len(label.Instances) == 0 {
			objects = append(objects, detector.Object{
				Label:      name,
				Confidence: float64(aws.ToFloat32(label.Confidence)) / 100.0,
			})
			continue
		}
		for _, inst := range label.Instances {
			objects = append(objects, detector.Object{
				Label:      name,
				Confidence: float64(aws.ToFloat32(inst.Confidence)) / 100.0,
				Box:        convertBox(inst.BoundingBox),
			})
		}
	}

	d.logAudit(ctx, audit.EventObjectsClassified, true, nil, map[string]string{
		"objects_count": strconv.Itoa(len(objects)),
	})

	return objects, nil
}

func normalizeLabel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := phoneLabels[name]; ok {
		return "cell phone"
	}
	return name
}

func convertBox(b *types.BoundingBox) detector.BoundingBox {
	if b == nil {
		return detector.BoundingBox{}
	}
	return detector.BoundingBox{
		X:      float64(aws.ToFloat32(b.Left)),
		Y:      float64(aws.ToFloat32(b.Top)),
		Width:  float64(aws.ToFloat32(b.Width)),
		Height: float64(aws.ToFloat32(b.Height)),
	}
}

var (
	_ detector.FaceLocator        = (*Detector)(nil)
	_ detector.IdentityEncoder    = (*Detector)(nil)
	_ detector.IdentityComparator = (*Detector)(nil)
	_ detector.ObjectClassifier   = (*Detector)(nil)
)
