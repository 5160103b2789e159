package rekognition

// Config holds configuration for the AWS Rekognition detectors
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinLabelConfidence filters DetectLabels results, 0..100
	MinLabelConfidence float32

	// MaxLabels caps DetectLabels results per frame
	MaxLabels int32
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:             "us-east-1",
		MinLabelConfidence: 50,
		MaxLabels:          25,
	}
}
