package journeys

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/trekjournal/media-proxy/pkg/errors"
)

const (
	tableJourneys  = "journeys"
	tableMembers   = "journey_members"
	tableWaypoints = "waypoints"
	tablePhotos    = "photos"
)

// restClient is the slice of the store client the repository needs.
type restClient interface {
	Select(ctx context.Context, table string, query url.Values, dest any) error
	Insert(ctx context.Context, table string, payload any, dest any) error
	Delete(ctx context.Context, table string, query url.Values) error
}

// Repository reads and writes journey data through the relational store's
// REST surface using the service-role credential.
type Repository struct {
	store restClient
}

// NewRepository binds the repo to the provided store client.
func NewRepository(store restClient) *Repository {
	return &Repository{store: store}
}

func eq(value string) string {
	return "eq." + value
}

// GetJourney fetches a journey by UUID. Returns CodeNotFound when no row matches.
func (r *Repository) GetJourney(ctx context.Context, journeyID string) (*Journey, error) {
	query := url.Values{}
	query.Set("id", eq(journeyID))
	query.Set("limit", "1")

	var rows []Journey
	if err := r.store.Select(ctx, tableJourneys, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "fetch journey")
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("journey %s not found", journeyID))
	}
	return &rows[0], nil
}

// ResolveSlug maps a journey slug to its UUID.
func (r *Repository) ResolveSlug(ctx context.Context, slug string) (string, error) {
	query := url.Values{}
	query.Set("slug", eq(slug))
	query.Set("select", "id")
	query.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if err := r.store.Select(ctx, tableJourneys, query, &rows); err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "resolve journey slug")
	}
	if len(rows) == 0 {
		return "", errors.New(errors.CodeNotFound, fmt.Sprintf("journey %q not found", slug))
	}
	return rows[0].ID, nil
}

// GetMembership returns the caller's membership row for a journey, or nil when absent.
func (r *Repository) GetMembership(ctx context.Context, journeyID, userID string) (*Membership, error) {
	query := url.Values{}
	query.Set("journey_id", eq(journeyID))
	query.Set("user_id", eq(userID))
	query.Set("limit", "1")

	var rows []Membership
	if err := r.store.Select(ctx, tableMembers, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "fetch membership")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListMembershipJourneyIDs returns every journey ID the user holds a membership for.
func (r *Repository) ListMembershipJourneyIDs(ctx context.Context, userID string) ([]string, error) {
	query := url.Values{}
	query.Set("user_id", eq(userID))
	query.Set("select", "journey_id")

	var rows []struct {
		JourneyID string `json:"journey_id"`
	}
	if err := r.store.Select(ctx, tableMembers, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list memberships")
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.JourneyID)
	}
	return ids, nil
}

// ListJourneysByIDs fetches full journey rows for the given IDs, ordered by name.
func (r *Repository) ListJourneysByIDs(ctx context.Context, ids []string) ([]Journey, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("id", "in.("+strings.Join(ids, ",")+")")
	query.Set("order", "name.asc")

	var rows []Journey
	if err := r.store.Select(ctx, tableJourneys, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list journeys")
	}
	return rows, nil
}

// Waypoints returns the journey's waypoints ordered by day number.
func (r *Repository) Waypoints(ctx context.Context, journeyID string) ([]Waypoint, error) {
	query := url.Values{}
	query.Set("journey_id", eq(journeyID))
	query.Set("order", "day_number.asc")

	var rows []Waypoint
	if err := r.store.Select(ctx, tableWaypoints, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "fetch waypoints")
	}
	return rows, nil
}

// Photos returns the journey's photo rows, optionally scoped to one waypoint.
func (r *Repository) Photos(ctx context.Context, journeyID string, waypointID *string) ([]Photo, error) {
	query := url.Values{}
	query.Set("journey_id", eq(journeyID))
	query.Set("order", "created_at.asc")
	if waypointID != nil && *waypointID != "" {
		query.Set("waypoint_id", eq(*waypointID))
	}

	var rows []Photo
	if err := r.store.Select(ctx, tablePhotos, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "fetch photos")
	}
	return rows, nil
}

// GetPhoto fetches one photo row by ID, or nil when the row does not exist.
func (r *Repository) GetPhoto(ctx context.Context, journeyID, photoID string) (*Photo, error) {
	query := url.Values{}
	query.Set("id", eq(photoID))
	query.Set("journey_id", eq(journeyID))
	query.Set("limit", "1")

	var rows []Photo
	if err := r.store.Select(ctx, tablePhotos, query, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "fetch photo")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertPhoto records an uploaded object so later deletes can resolve its exact path.
func (r *Repository) InsertPhoto(ctx context.Context, photo Photo) (*Photo, error) {
	var rows []Photo
	if err := r.store.Insert(ctx, tablePhotos, photo, &rows); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "insert photo")
	}
	if len(rows) == 0 {
		return &photo, nil
	}
	return &rows[0], nil
}

// DeletePhotoRow removes the photo index row. Missing rows are not an error.
func (r *Repository) DeletePhotoRow(ctx context.Context, journeyID, photoID string) error {
	query := url.Values{}
	query.Set("id", eq(photoID))
	query.Set("journey_id", eq(journeyID))

	if err := r.store.Delete(ctx, tablePhotos, query); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "delete photo row")
	}
	return nil
}
