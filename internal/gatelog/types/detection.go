package types

// Decision values returned by the presence resolver.
const (
	DecisionOpen  = "open"
	DecisionClose = "close"
)

type DetectionRequest struct {
	VehicleNo  string `json:"vehicle_no"`
	ImagePath  string `json:"image_path,omitempty"`
	DetectedAt string `json:"detected_at,omitempty"` // optional device timestamp
}

type DetectionResponse struct {
	OK         bool   `json:"ok"`
	Decision   string `json:"decision"`
	VehicleNo  string `json:"vehicle_no"`
	EventID    string `json:"event_id"`
	FormURL    string `json:"form_url,omitempty"` // set on "open" so the operator can collect visitor details
	ServerTime string `json:"server_time"`
}
