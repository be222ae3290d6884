package journeys

import (
	"time"

	"github.com/trekjournal/media-proxy/pkg/enums"
)

// Journey is the projection of a journeys row the proxy cares about.
type Journey struct {
	ID                  string      `json:"id"`
	Slug                string      `json:"slug"`
	Name                string      `json:"name"`
	Country             string      `json:"country"`
	Description         string      `json:"description"`
	IsPublic            bool        `json:"is_public"`
	StartDate           string      `json:"start_date"`
	EndDate             string      `json:"end_date"`
	TotalDistanceKM     float64     `json:"total_distance_km"`
	TotalElevationGainM float64     `json:"total_elevation_gain_m"`
	Route               [][]float64 `json:"route"`
}

// Membership is a journey_members row binding a user to a journey with a role.
type Membership struct {
	JourneyID string           `json:"journey_id"`
	UserID    string           `json:"user_id"`
	Role      enums.MemberRole `json:"role"`
}

// Waypoint is a camp or named stop along a journey's route.
type Waypoint struct {
	ID          string  `json:"id"`
	JourneyID   string  `json:"journey_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DayNumber   int     `json:"day_number"`
	RouteIndex  int     `json:"route_index"`
	ElevationM  float64 `json:"elevation_m"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Photo is a photos row indexing a stored object by logical ID.
type Photo struct {
	ID           string    `json:"id"`
	JourneyID    string    `json:"journey_id"`
	WaypointID   *string   `json:"waypoint_id,omitempty"`
	StoragePath  string    `json:"storage_path"`
	ContentType  string    `json:"content_type"`
	OriginalName string    `json:"original_name,omitempty"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}
