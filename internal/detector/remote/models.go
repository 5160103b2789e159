package remote

// FacesRequest for POST /faces and POST /objects
type FacesRequest struct {
	Img string `json:"img"` // base64 encoded image
}

// FacesResponse from POST /faces
type FacesResponse struct {
	Faces []FaceResult `json:"faces"`
}

type FaceResult struct {
	Region     Region      `json:"region"`
	Confidence float64     `json:"confidence"`
	Pose       *PoseResult `json:"pose,omitempty"`
}

// Region is in pixels of the submitted frame
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type PoseResult struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img    string  `json:"img"`
	Region *Region `json:"region,omitempty"` // face to encode; whole frame when nil
	Model  string  `json:"model"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Embedding []float64 `json:"embedding"`
}

// ObjectsResponse from POST /objects
type ObjectsResponse struct {
	Objects []ObjectResult `json:"objects"`
}

type ObjectResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Region     Region  `json:"region"`
}
