package types

// TimeLayout is the timestamp format used in the ledger interchange file
// and in API payloads. An empty out_time marks an entry as open.
const TimeLayout = "2006-01-02 15:04:05"

// Statuses used in entry/exit/visitor responses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// Entry is the wire view of one IN/OUT lifecycle of a vehicle visit.
type Entry struct {
	ID          string `json:"id,omitempty"`
	VehicleNo   string `json:"vehicle_no"`
	VisitorName string `json:"visitor_name"`
	Phone       string `json:"phone"`
	Purpose     string `json:"purpose"`
	InTime      string `json:"in_time"`
	OutTime     string `json:"out_time"` // empty while the vehicle is inside
	ImagePath   string `json:"image_path"`
}

type NewEntryRequest struct {
	VehicleNo string `json:"vehicle_no"`
	ImagePath string `json:"image_path"`
	InTime    string `json:"in_time,omitempty"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

type NewEntryResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	VehicleNo string `json:"vehicle_no"`
	InTime    string `json:"in_time,omitempty"`
	// Existing is set on a warning response: the vehicle already has an
	// open entry and no new row was created.
	Existing *Entry `json:"existing_entry,omitempty"`
}

type UpdateExitRequest struct {
	VehicleNo string `json:"vehicle_no"`
	OutTime   string `json:"out_time,omitempty"`
}

type UpdateExitResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	VehicleNo string `json:"vehicle_no"`
	OutTime   string `json:"out_time"`
}

type UpdateDetailsRequest struct {
	VehicleNo string `json:"vehicle_no"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Purpose   string `json:"purpose"`
}

type UpdateDetailsResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	VehicleNo string `json:"vehicle_no"`
}

type VehicleListResponse struct {
	Status   string  `json:"status"`
	Count    int     `json:"count"`
	Vehicles []Entry `json:"vehicles"`
}

type VehicleEntriesResponse struct {
	Status    string  `json:"status"`
	VehicleNo string  `json:"vehicle_no"`
	Count     int     `json:"count"`
	Entries   []Entry `json:"entries"`
}

type Stats struct {
	TotalEntries   int `json:"total_entries"`
	OpenEntries    int `json:"open_entries"`
	ClosedEntries  int `json:"closed_entries"`
	UniqueVehicles int `json:"unique_vehicles"`
}

type StatsResponse struct {
	Status     string `json:"status"`
	Statistics Stats  `json:"statistics"`
}
